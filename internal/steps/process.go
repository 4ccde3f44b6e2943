package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
	"github.com/shaiso/Autopilot/internal/telemetry"
)

// Ключи конфигурации процессов.
const (
	configExePath         = "exePath"
	configUseDynamic      = "useDynamic"
	configUsePid          = "usePid"
	configWaitAfterLaunch = "waitAfterLaunch" // секунды
)

const defaultWaitAfterLaunch = 2.0

// SpawnTargetStep — запуск целевого процесса.
//
// Конфигурация:
//
//	{"useDynamic": true, "waitAfterLaunch": 2}
//	{"exePath": "C:/apps/app.exe"}
//
// При useDynamic путь берётся из Context[targetPath]. Если в контексте
// уже есть живой handle (процесс поднят Fleet Manager), он переиспользуется.
type SpawnTargetStep struct{}

// NewSpawnTargetStep создаёт новый SpawnTargetStep.
func NewSpawnTargetStep() *SpawnTargetStep { return &SpawnTargetStep{} }

// Kind возвращает тип узла.
func (s *SpawnTargetStep) Kind() domain.NodeKind { return domain.NodeKindSpawnTarget }

// Execute запускает процесс или переиспользует уже запущенный.
func (s *SpawnTargetStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}

	dynamic := GetConfigBool(req.Config, configUseDynamic, false)
	path := GetConfigString(req.Config, configExePath)
	if dynamic && req.Context != nil {
		path = req.Context.GetString(engine.KeyTargetPath)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s: target path required", ErrInvalidConfig, s.Kind())
	}

	wait := defaultWaitAfterLaunch
	if v, ok := lookupFloat(req.Config, configWaitAfterLaunch); ok && v >= 0 {
		wait = v
	}

	return withDelays(ctx, req, func() (map[string]any, error) {
		if dynamic && req.Context != nil {
			if h := actuator.Handle(req.Context.GetInt(engine.KeyTargetHandle)); !h.IsZero() {
				alive, err := act.IsAlive(ctx, path)
				if err == nil && alive {
					if err := act.Focus(ctx, h); err != nil {
						telemetry.FromContext(ctx).Debug("focus failed", "handle", int(h), "error", err)
					}
					return map[string]any{"handle": int(h), "reused": true}, nil
				}
			}
		}

		h, err := act.Spawn(ctx, path)
		if err != nil {
			return nil, err
		}
		if req.Context != nil {
			req.Context.Set(engine.KeyTargetHandle, int(h))
		}

		if err := req.sleep(ctx, seconds(wait)); err != nil {
			return nil, err
		}
		// Фокус не критичен: окно могло ещё не появиться
		if err := act.Focus(ctx, h); err != nil {
			telemetry.FromContext(ctx).Debug("focus failed", "handle", int(h), "error", err)
		}

		return map[string]any{"handle": int(h), "reused": false}, nil
	})
}

// TerminateTargetStep — завершение целевого процесса.
//
// Конфигурация:
//
//	{"usePid": true}             // по handle из контекста
//	{"exePath": "C:/apps/app.exe"} // все процессы с этим файлом
//
// Без handle и exePath используется Context[targetPath].
type TerminateTargetStep struct{}

// NewTerminateTargetStep создаёт новый TerminateTargetStep.
func NewTerminateTargetStep() *TerminateTargetStep { return &TerminateTargetStep{} }

// Kind возвращает тип узла.
func (s *TerminateTargetStep) Kind() domain.NodeKind { return domain.NodeKindTerminateTarget }

// Execute завершает процесс.
func (s *TerminateTargetStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}

	var handle actuator.Handle
	if GetConfigBool(req.Config, configUsePid, false) && req.Context != nil {
		handle = actuator.Handle(req.Context.GetInt(engine.KeyTargetHandle))
	}

	path := GetConfigString(req.Config, configExePath)
	if path == "" && req.Context != nil {
		path = req.Context.GetString(engine.KeyTargetPath)
	}

	if handle.IsZero() && path == "" {
		return nil, fmt.Errorf("%w: %s: no handle or target path", ErrInvalidConfig, s.Kind())
	}

	return withDelays(ctx, req, func() (map[string]any, error) {
		if !handle.IsZero() {
			if err := act.Terminate(ctx, handle); err != nil {
				return nil, err
			}
			req.Context.Delete(engine.KeyTargetHandle)
			return map[string]any{"handle": int(handle)}, nil
		}

		return map[string]any{"path": path}, act.TerminateByPath(ctx, path)
	})
}

// MaximizeForegroundStep — развернуть активное окно.
type MaximizeForegroundStep struct{}

// NewMaximizeForegroundStep создаёт новый MaximizeForegroundStep.
func NewMaximizeForegroundStep() *MaximizeForegroundStep { return &MaximizeForegroundStep{} }

// Kind возвращает тип узла.
func (s *MaximizeForegroundStep) Kind() domain.NodeKind { return domain.NodeKindMaximizeForeground }

// Execute разворачивает окно.
func (s *MaximizeForegroundStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}

	return withDelays(ctx, req, func() (map[string]any, error) {
		return nil, act.MaximizeForeground(ctx)
	})
}
