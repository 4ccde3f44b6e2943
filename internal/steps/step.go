package steps

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип узла не найден в реестре.
	ErrStepNotFound = errors.New("step kind not found")

	// ErrInvalidConfig — невалидная конфигурация узла.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага прервано закрытием контекста.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrNoActuator — шагу нужен Actuator, а он не передан.
	ErrNoActuator = errors.New("step requires an actuator")
)

// Общие ключи конфигурации.
const (
	configDelayBefore = "delayBefore"
	configDelayAfter  = "delayAfter"
)

// Step — обработчик одного типа узла.
type Step interface {
	// Kind возвращает тип узла.
	Kind() domain.NodeKind

	// Execute выполняет узел и возвращает результат.
	//
	// Паузы внутри узла (delayBefore, delayAfter, посимвольный ввод)
	// не являются точками отмены run: отмена наблюдается только между
	// узлами. ctx закрывается лишь при остановке всего хоста.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные для выполнения узла.
type Request struct {
	// NodeID — идентификатор узла.
	NodeID string

	// Config — конфигурация (уже отрендеренная через engine.RenderConfig).
	Config map[string]any

	// Context — Execution Context запуска. Шаги читают из него
	// targetPath/payloadList и пишут targetHandle.
	Context *engine.Context

	// Actuator — побочные действия.
	Actuator actuator.Actuator

	// Sleeper — паузы. Если nil, используется TimerSleeper.
	Sleeper Sleeper

	// Rand — источник случайности для randomDelay и pasteList.
	// Если nil, используется глобальный генератор.
	Rand *rand.Rand
}

// Response — результат выполнения узла.
type Response struct {
	// Outputs — данные для событий и журнала.
	Outputs map[string]any
}

// NewResponse создаёт новый Response с outputs.
func NewResponse(outputs map[string]any) *Response {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Response{
		Outputs: outputs,
	}
}

func (r *Request) sleep(ctx context.Context, d time.Duration) error {
	s := r.Sleeper
	if s == nil {
		s = TimerSleeper{}
	}
	return s.Sleep(ctx, d)
}

func (r *Request) intN(n int) int {
	if n <= 0 {
		return 0
	}
	if r.Rand != nil {
		return r.Rand.IntN(n)
	}
	return rand.IntN(n)
}

func (r *Request) float64() float64 {
	if r.Rand != nil {
		return r.Rand.Float64()
	}
	return rand.Float64()
}

func (r *Request) needActuator(kind domain.NodeKind) (actuator.Actuator, error) {
	if r.Actuator == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoActuator, kind)
	}
	return r.Actuator, nil
}

// withDelays оборачивает действие паузами delayBefore/delayAfter (секунды).
func withDelays(ctx context.Context, req *Request, act func() (map[string]any, error)) (*Response, error) {
	if err := req.sleep(ctx, seconds(GetConfigFloat(req.Config, configDelayBefore))); err != nil {
		return nil, err
	}

	outputs, err := act()
	if err != nil {
		return nil, err
	}

	if err := req.sleep(ctx, seconds(GetConfigFloat(req.Config, configDelayAfter))); err != nil {
		return nil, err
	}

	return NewResponse(outputs), nil
}

// seconds переводит дробные секунды в Duration.
func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// millis переводит миллисекунды в Duration.
func millis(ms float64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// --- Config helpers ---

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigFloat извлекает число из конфига (JSON даёт float64).
func GetConfigFloat(config map[string]any, key string) float64 {
	f, _ := lookupFloat(config, key)
	return f
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	return int(GetConfigFloat(config, key))
}

// GetConfigIntDefault — как GetConfigInt, но с значением по умолчанию
// для отсутствующего или нулевого ключа.
func GetConfigIntDefault(config map[string]any, key string, def int) int {
	if v := GetConfigInt(config, key); v > 0 {
		return v
	}
	return def
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigStrings извлекает список строк ([]string или []any).
func GetConfigStrings(config map[string]any, key string) []string {
	v, ok := config[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// RequireInt извлекает обязательное число.
func RequireInt(kind domain.NodeKind, config map[string]any, key string) (int, error) {
	f, ok := lookupFloat(config, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s: %s required", ErrInvalidConfig, kind, key)
	}
	return int(f), nil
}

// RequireFloat извлекает обязательное неотрицательное число.
func RequireFloat(kind domain.NodeKind, config map[string]any, key string) (float64, error) {
	f, ok := lookupFloat(config, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s: %s required", ErrInvalidConfig, kind, key)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %s: %s must be >= 0", ErrInvalidConfig, kind, key)
	}
	return f, nil
}

func lookupFloat(config map[string]any, key string) (float64, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
