package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
)

// Ключи конфигурации клавиатуры.
const (
	configKey          = "key"
	configKeys         = "keys"
	configText         = "text"
	configSlow         = "slow"
	configCharDelay    = "charDelay" // миллисекунды
	configChannelCount = "channelCount"
)

// Значения по умолчанию.
const (
	defaultCharDelayMs  = 50
	defaultChannelCount = 5
)

// KeyPressStep — нажатие одной клавиши.
//
// Конфигурация: {"key": "enter"}
type KeyPressStep struct{}

// NewKeyPressStep создаёт новый KeyPressStep.
func NewKeyPressStep() *KeyPressStep { return &KeyPressStep{} }

// Kind возвращает тип узла.
func (s *KeyPressStep) Kind() domain.NodeKind { return domain.NodeKindKeyPress }

// Execute нажимает клавишу.
func (s *KeyPressStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	key := GetConfigString(req.Config, configKey)
	if key == "" {
		return nil, fmt.Errorf("%w: %s: key required", ErrInvalidConfig, s.Kind())
	}

	return withDelays(ctx, req, func() (map[string]any, error) {
		return map[string]any{"key": key}, act.SendKey(ctx, key)
	})
}

// KeyComboStep — одновременное нажатие клавиш.
//
// Конфигурация: {"keys": ["ctrl", "v"]}
type KeyComboStep struct{}

// NewKeyComboStep создаёт новый KeyComboStep.
func NewKeyComboStep() *KeyComboStep { return &KeyComboStep{} }

// Kind возвращает тип узла.
func (s *KeyComboStep) Kind() domain.NodeKind { return domain.NodeKindKeyCombo }

// Execute нажимает комбинацию.
func (s *KeyComboStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	keys := GetConfigStrings(req.Config, configKeys)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s: keys required", ErrInvalidConfig, s.Kind())
	}

	return withDelays(ctx, req, func() (map[string]any, error) {
		return map[string]any{"keys": strings.Join(keys, "+")}, act.SendCombo(ctx, keys)
	})
}

// TypeTextStep — ввод текста.
//
// Конфигурация:
//
//	{"text": "hello {{.identityKey}}", "slow": true, "charDelay": 80}
//
// Текст уже отрендерен движком. charDelay в миллисекундах (по умолчанию 50).
type TypeTextStep struct{}

// NewTypeTextStep создаёт новый TypeTextStep.
func NewTypeTextStep() *TypeTextStep { return &TypeTextStep{} }

// Kind возвращает тип узла.
func (s *TypeTextStep) Kind() domain.NodeKind { return domain.NodeKindTypeText }

// Execute вводит текст.
func (s *TypeTextStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	if _, ok := req.Config[configText]; !ok {
		return nil, fmt.Errorf("%w: %s: text required", ErrInvalidConfig, s.Kind())
	}
	text := GetConfigString(req.Config, configText)
	slow := GetConfigBool(req.Config, configSlow, false)
	charDelay := millis(float64(GetConfigIntDefault(req.Config, configCharDelay, defaultCharDelayMs)))

	return withDelays(ctx, req, func() (map[string]any, error) {
		if text == "" {
			return map[string]any{"chars": 0}, nil
		}
		return map[string]any{"chars": len([]rune(text))}, act.TypeText(ctx, text, slow, charDelay)
	})
}

// PasteListStep — ввод выборки из payloadList контекста.
//
// Берёт список из Context[payloadList]. Если он длиннее channelCount
// (по умолчанию 5), перемешивает и берёт первые channelCount элементов.
// Элементы вводятся построчно, выбранный список пишется в
// Context[pastedItems].
type PasteListStep struct{}

// NewPasteListStep создаёт новый PasteListStep.
func NewPasteListStep() *PasteListStep { return &PasteListStep{} }

// Kind возвращает тип узла.
func (s *PasteListStep) Kind() domain.NodeKind { return domain.NodeKindPasteList }

// Execute вводит выборку.
func (s *PasteListStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	if req.Context == nil {
		return nil, fmt.Errorf("%w: %s: execution context required", ErrInvalidConfig, s.Kind())
	}

	count := GetConfigIntDefault(req.Config, configChannelCount, defaultChannelCount)
	slow := GetConfigBool(req.Config, configSlow, false)
	charDelay := millis(float64(GetConfigIntDefault(req.Config, configCharDelay, defaultCharDelayMs)))

	return withDelays(ctx, req, func() (map[string]any, error) {
		items := pickItems(req, req.Context.GetStrings(engine.KeyPayloadList), count)

		if len(items) > 0 {
			if err := act.TypeText(ctx, strings.Join(items, "\n"), slow, charDelay); err != nil {
				return nil, err
			}
		}

		req.Context.Set(engine.KeyPastedItems, items)
		return map[string]any{"pasted": len(items)}, nil
	})
}

// pickItems возвращает до count элементов. Длинный список перемешивается.
func pickItems(req *Request, items []string, count int) []string {
	if len(items) <= count {
		return items
	}

	shuffled := append([]string(nil), items...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := req.intN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:count]
}
