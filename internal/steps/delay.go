package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Autopilot/internal/domain"
)

// Ключи конфигурации задержек (секунды).
const (
	configDuration    = "duration"
	configMinDuration = "minDuration"
	configMaxDuration = "maxDuration"
)

// DelayStep — фиксированная пауза.
//
// Конфигурация:
//
//	{"duration": 2.5}   // секунды
type DelayStep struct{}

// NewDelayStep создаёт новый DelayStep.
func NewDelayStep() *DelayStep {
	return &DelayStep{}
}

// Kind возвращает тип узла.
func (s *DelayStep) Kind() domain.NodeKind {
	return domain.NodeKindDelay
}

// Execute выполняет задержку.
func (s *DelayStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	sec, err := RequireFloat(s.Kind(), req.Config, configDuration)
	if err != nil {
		return nil, err
	}

	d := seconds(sec)
	if err := req.sleep(ctx, d); err != nil {
		return nil, err
	}

	return NewResponse(map[string]any{"duration_ms": d.Milliseconds()}), nil
}

// RandomDelayStep — пауза случайной длительности.
//
// Конфигурация:
//
//	{"minDuration": 1, "maxDuration": 4}   // секунды, min <= max
type RandomDelayStep struct{}

// NewRandomDelayStep создаёт новый RandomDelayStep.
func NewRandomDelayStep() *RandomDelayStep {
	return &RandomDelayStep{}
}

// Kind возвращает тип узла.
func (s *RandomDelayStep) Kind() domain.NodeKind {
	return domain.NodeKindRandomDelay
}

// Execute выбирает длительность равномерно в [min, max] и ждёт.
func (s *RandomDelayStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	minSec, err := RequireFloat(s.Kind(), req.Config, configMinDuration)
	if err != nil {
		return nil, err
	}
	maxSec, err := RequireFloat(s.Kind(), req.Config, configMaxDuration)
	if err != nil {
		return nil, err
	}
	if minSec > maxSec {
		return nil, fmt.Errorf("%w: %s: minDuration > maxDuration", ErrInvalidConfig, s.Kind())
	}

	d := seconds(minSec + req.float64()*(maxSec-minSec))
	if err := req.sleep(ctx, d); err != nil {
		return nil, err
	}

	return NewResponse(map[string]any{"duration_ms": d.Milliseconds()}), nil
}
