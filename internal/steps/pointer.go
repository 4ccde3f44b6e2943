package steps

import (
	"context"
	"time"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
)

// Ключи конфигурации указателя.
const (
	configX        = "x"
	configY        = "y"
	configButton   = "button"
	configAmount   = "amount"
	configStartX   = "startX"
	configStartY   = "startY"
	configEndX     = "endX"
	configEndY     = "endY"
	configDragTime = "duration" // миллисекунды
)

// Параметры составных жестов.
const (
	doubleClickGap      = 100 * time.Millisecond
	defaultDragDuration = 500 * time.Millisecond
	minDragSteps        = 10
	dragStepEvery       = 50 * time.Millisecond
)

// PointerMoveStep — перемещение курсора в точку.
//
// Конфигурация: {"x": 100, "y": 200}
type PointerMoveStep struct{}

// NewPointerMoveStep создаёт новый PointerMoveStep.
func NewPointerMoveStep() *PointerMoveStep { return &PointerMoveStep{} }

// Kind возвращает тип узла.
func (s *PointerMoveStep) Kind() domain.NodeKind { return domain.NodeKindPointerMove }

// Execute перемещает курсор.
func (s *PointerMoveStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	x, y, err := requirePoint(s.Kind(), req.Config, configX, configY)
	if err != nil {
		return nil, err
	}

	return withDelays(ctx, req, func() (map[string]any, error) {
		return map[string]any{"x": x, "y": y}, act.MoveCursor(ctx, x, y)
	})
}

// PointerClickStep — клик в точке.
//
// Конфигурация: {"x": 100, "y": 200, "button": "left"}
type PointerClickStep struct{}

// NewPointerClickStep создаёт новый PointerClickStep.
func NewPointerClickStep() *PointerClickStep { return &PointerClickStep{} }

// Kind возвращает тип узла.
func (s *PointerClickStep) Kind() domain.NodeKind { return domain.NodeKindPointerClick }

// Execute выполняет клик.
func (s *PointerClickStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	x, y, err := requirePoint(s.Kind(), req.Config, configX, configY)
	if err != nil {
		return nil, err
	}
	button := actuator.ParseButton(GetConfigString(req.Config, configButton))

	return withDelays(ctx, req, func() (map[string]any, error) {
		return map[string]any{"x": x, "y": y, "button": string(button)}, act.Click(ctx, x, y, button)
	})
}

// PointerDoubleClickStep — два клика с интервалом 100 мс.
type PointerDoubleClickStep struct{}

// NewPointerDoubleClickStep создаёт новый PointerDoubleClickStep.
func NewPointerDoubleClickStep() *PointerDoubleClickStep { return &PointerDoubleClickStep{} }

// Kind возвращает тип узла.
func (s *PointerDoubleClickStep) Kind() domain.NodeKind { return domain.NodeKindPointerDoubleClick }

// Execute выполняет двойной клик.
func (s *PointerDoubleClickStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	x, y, err := requirePoint(s.Kind(), req.Config, configX, configY)
	if err != nil {
		return nil, err
	}
	button := actuator.ParseButton(GetConfigString(req.Config, configButton))

	return withDelays(ctx, req, func() (map[string]any, error) {
		if err := act.Click(ctx, x, y, button); err != nil {
			return nil, err
		}
		if err := req.sleep(ctx, doubleClickGap); err != nil {
			return nil, err
		}
		return map[string]any{"x": x, "y": y, "button": string(button)}, act.Click(ctx, x, y, button)
	})
}

// PointerScrollStep — прокрутка колесом.
//
// Конфигурация: {"amount": -3}   // положительное значение — вверх
type PointerScrollStep struct{}

// NewPointerScrollStep создаёт новый PointerScrollStep.
func NewPointerScrollStep() *PointerScrollStep { return &PointerScrollStep{} }

// Kind возвращает тип узла.
func (s *PointerScrollStep) Kind() domain.NodeKind { return domain.NodeKindPointerScroll }

// Execute прокручивает колесо.
func (s *PointerScrollStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	amount, err := RequireInt(s.Kind(), req.Config, configAmount)
	if err != nil {
		return nil, err
	}

	return withDelays(ctx, req, func() (map[string]any, error) {
		return map[string]any{"amount": amount}, act.Scroll(ctx, amount)
	})
}

// PointerDragStep — перетаскивание с зажатой кнопкой.
//
// Конфигурация:
//
//	{"startX": 10, "startY": 10, "endX": 300, "endY": 40, "duration": 500, "button": "left"}
//
// duration в миллисекундах. Путь разбивается на max(10, duration/50)
// равных отрезков.
type PointerDragStep struct{}

// NewPointerDragStep создаёт новый PointerDragStep.
func NewPointerDragStep() *PointerDragStep { return &PointerDragStep{} }

// Kind возвращает тип узла.
func (s *PointerDragStep) Kind() domain.NodeKind { return domain.NodeKindPointerDrag }

// Execute выполняет перетаскивание.
func (s *PointerDragStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	act, err := req.needActuator(s.Kind())
	if err != nil {
		return nil, err
	}
	sx, sy, err := requirePoint(s.Kind(), req.Config, configStartX, configStartY)
	if err != nil {
		return nil, err
	}
	ex, ey, err := requirePoint(s.Kind(), req.Config, configEndX, configEndY)
	if err != nil {
		return nil, err
	}

	duration := millis(GetConfigFloat(req.Config, configDragTime))
	if duration == 0 {
		duration = defaultDragDuration
	}
	steps := dragSteps(duration)
	button := actuator.ParseButton(GetConfigString(req.Config, configButton))

	return withDelays(ctx, req, func() (map[string]any, error) {
		if err := act.MoveCursor(ctx, sx, sy); err != nil {
			return nil, err
		}
		if err := act.ButtonDown(ctx, button); err != nil {
			return nil, err
		}

		pause := duration / time.Duration(steps)
		for i := 1; i <= steps; i++ {
			x := sx + (ex-sx)*i/steps
			y := sy + (ey-sy)*i/steps
			if err := act.MoveCursor(ctx, x, y); err != nil {
				// Кнопку нужно отпустить в любом случае
				_ = act.ButtonUp(ctx, button)
				return nil, err
			}
			if err := req.sleep(ctx, pause); err != nil {
				_ = act.ButtonUp(ctx, button)
				return nil, err
			}
		}

		outputs := map[string]any{
			"from":  []int{sx, sy},
			"to":    []int{ex, ey},
			"steps": steps,
		}
		return outputs, act.ButtonUp(ctx, button)
	})
}

// dragSteps возвращает число отрезков для перетаскивания.
func dragSteps(d time.Duration) int {
	return max(minDragSteps, int(d/dragStepEvery))
}

func requirePoint(kind domain.NodeKind, config map[string]any, xKey, yKey string) (int, int, error) {
	x, err := RequireInt(kind, config, xKey)
	if err != nil {
		return 0, 0, err
	}
	y, err := RequireInt(kind, config, yKey)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
