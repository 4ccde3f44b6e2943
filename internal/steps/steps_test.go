package steps

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
)

func newRequest(config map[string]any) (*Request, *actuator.Recorder, *InstantSleeper) {
	rec := actuator.NewRecorder()
	sl := &InstantSleeper{}
	return &Request{
		NodeID:   "n1",
		Config:   config,
		Context:  engine.NewContext(nil),
		Actuator: rec,
		Sleeper:  sl,
		Rand:     rand.New(rand.NewPCG(1, 2)),
	}, rec, sl
}

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой реестр
	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	r.Register(NewDelayStep())
	if r.Count() != 1 {
		t.Errorf("expected 1 step, got %d", r.Count())
	}

	step, err := r.Get(domain.NodeKindDelay)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if step.Kind() != domain.NodeKindDelay {
		t.Errorf("expected delay, got %s", step.Kind())
	}

	// Несуществующий тип
	_, err = r.Get("unknown")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}

	r.Unregister(domain.NodeKindDelay)
	if r.Has(domain.NodeKindDelay) {
		t.Error("should not have delay after unregister")
	}
}

func TestDefaultRegistryCoversAllKinds(t *testing.T) {
	r := DefaultRegistry()

	for _, kind := range domain.AllNodeKinds() {
		if !r.Has(kind) {
			t.Errorf("default registry should have %s", kind)
		}
	}
	if r.Count() != len(domain.AllNodeKinds()) {
		t.Errorf("expected %d kinds, got %d", len(domain.AllNodeKinds()), r.Count())
	}
	if got, want := fmt.Sprint(r.Kinds()), fmt.Sprint(domain.AllNodeKinds()); got != want {
		t.Errorf("Kinds() = %s, want %s", got, want)
	}
}

// Delay Tests

func TestDelayStep(t *testing.T) {
	req, _, sl := newRequest(map[string]any{"duration": 1.5})

	resp, err := NewDelayStep().Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sl.Total() != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", sl.Total())
	}
	if resp.Outputs["duration_ms"] != int64(1500) {
		t.Errorf("unexpected outputs: %v", resp.Outputs)
	}
}

func TestDelayStep_InvalidConfig(t *testing.T) {
	tests := []map[string]any{
		{},
		{"duration": -1.0},
		{"duration": "2"},
	}

	for _, cfg := range tests {
		req, _, _ := newRequest(cfg)
		if _, err := NewDelayStep().Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("config %v: expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
}

func TestRandomDelayStep(t *testing.T) {
	for i := 0; i < 20; i++ {
		req, _, sl := newRequest(map[string]any{"minDuration": 1.0, "maxDuration": 3.0})
		req.Rand = rand.New(rand.NewPCG(uint64(i), 7))

		if _, err := NewRandomDelayStep().Execute(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := sl.Total(); got < time.Second || got > 3*time.Second {
			t.Errorf("duration out of range: %v", got)
		}
	}

	// min > max
	req, _, _ := newRequest(map[string]any{"minDuration": 3.0, "maxDuration": 1.0})
	if _, err := NewRandomDelayStep().Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSleeper_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := (TimerSleeper{}).Sleep(ctx, time.Hour); !errors.Is(err, ErrStepCancelled) {
		t.Errorf("expected ErrStepCancelled, got %v", err)
	}
}

// Pointer Tests

func TestPointerClickStep_Delays(t *testing.T) {
	req, rec, sl := newRequest(map[string]any{
		"x": 10.0, "y": 20.0, "button": "right",
		"delayBefore": 0.5, "delayAfter": 1.0,
	})

	if _, err := NewPointerClickStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := rec.Calls()
	if len(calls) != 1 || calls[0].String() != "Click(10, 20, right)" {
		t.Errorf("unexpected calls: %v", calls)
	}

	slept := sl.Slept()
	if len(slept) != 2 || slept[0] != 500*time.Millisecond || slept[1] != time.Second {
		t.Errorf("expected delayBefore/delayAfter, got %v", slept)
	}
}

func TestPointerClickStep_MissingCoords(t *testing.T) {
	req, rec, _ := newRequest(map[string]any{"x": 10.0})

	if _, err := NewPointerClickStep().Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Error("no actuator calls expected on invalid config")
	}
}

func TestPointerDoubleClickStep(t *testing.T) {
	req, rec, sl := newRequest(map[string]any{"x": 1.0, "y": 2.0})

	if _, err := NewPointerDoubleClickStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Count("Click") != 2 {
		t.Errorf("expected 2 clicks, got %d", rec.Count("Click"))
	}
	if slept := sl.Slept(); len(slept) != 1 || slept[0] != 100*time.Millisecond {
		t.Errorf("expected 100ms gap, got %v", slept)
	}
}

func TestPointerDragStep(t *testing.T) {
	req, rec, sl := newRequest(map[string]any{
		"startX": 0.0, "startY": 0.0, "endX": 100.0, "endY": 50.0,
	})

	resp, err := NewPointerDragStep().Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// По умолчанию 500 мс → 10 отрезков
	if resp.Outputs["steps"] != 10 {
		t.Errorf("expected 10 steps, got %v", resp.Outputs["steps"])
	}

	methods := rec.Methods()
	if methods[0] != "MoveCursor" || methods[1] != "ButtonDown" || methods[len(methods)-1] != "ButtonUp" {
		t.Errorf("unexpected call order: %v", methods)
	}
	if rec.Count("MoveCursor") != 11 {
		t.Errorf("expected 11 moves, got %d", rec.Count("MoveCursor"))
	}

	last := rec.Calls()[len(methods)-2]
	if last.String() != "MoveCursor(100, 50)" {
		t.Errorf("drag should end at target, got %s", last)
	}
	if sl.Total() != 500*time.Millisecond {
		t.Errorf("expected 500ms total, got %v", sl.Total())
	}
}

func TestDragSteps(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{100 * time.Millisecond, 10},
		{500 * time.Millisecond, 10},
		{2 * time.Second, 40},
	}

	for _, tt := range tests {
		if got := dragSteps(tt.d); got != tt.want {
			t.Errorf("dragSteps(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestPointerDragStep_ReleasesOnError(t *testing.T) {
	req, rec, _ := newRequest(map[string]any{
		"startX": 0.0, "startY": 0.0, "endX": 10.0, "endY": 10.0,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewPointerDragStep().Execute(ctx, req); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	// Нулевые паузы не проверяют ctx, отмена наблюдается на первой паузе жеста
	if rec.Count("ButtonUp") != 1 {
		t.Errorf("button should be released, calls: %v", rec.Methods())
	}
}

// Keyboard Tests

func TestKeyComboStep(t *testing.T) {
	req, rec, _ := newRequest(map[string]any{"keys": []any{"ctrl", "v"}})

	if _, err := NewKeyComboStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Calls()[0].String() != "SendCombo([ctrl v])" {
		t.Errorf("unexpected call: %v", rec.Calls())
	}

	req, _, _ = newRequest(map[string]any{"keys": []any{}})
	if _, err := NewKeyComboStep().Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestTypeTextStep(t *testing.T) {
	req, rec, _ := newRequest(map[string]any{"text": "hi", "slow": true})

	if _, err := NewTypeTextStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Calls()[0].String(); got != "TypeText(hi, true, 50ms)" {
		t.Errorf("unexpected call: %s", got)
	}

	// Пустой текст не вызывает актуатор
	req, rec, _ = newRequest(map[string]any{"text": ""})
	if _, err := NewTypeTextStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Errorf("expected no calls, got %v", rec.Calls())
	}
}

func TestPasteListStep_Short(t *testing.T) {
	req, rec, _ := newRequest(nil)
	req.Context.Set(engine.KeyPayloadList, []string{"a", "b"})

	if _, err := NewPasteListStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := req.Context.GetStrings(engine.KeyPastedItems); strings.Join(got, ",") != "a,b" {
		t.Errorf("expected all items in order, got %v", got)
	}
	if rec.Count("TypeText") != 1 {
		t.Errorf("expected one TypeText, got %d", rec.Count("TypeText"))
	}
}

func TestPasteListStep_Sampled(t *testing.T) {
	req, _, _ := newRequest(map[string]any{"channelCount": 3.0})
	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	req.Context.Set(engine.KeyPayloadList, items)

	if _, err := NewPasteListStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := req.Context.GetStrings(engine.KeyPastedItems)
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %v", got)
	}

	seen := make(map[string]bool)
	for _, item := range got {
		if !strings.Contains("abcdefg", item) || seen[item] {
			t.Errorf("unexpected or duplicate item %q in %v", item, got)
		}
		seen[item] = true
	}

	// Исходный список не меняется
	if strings.Join(items, "") != "abcdefg" {
		t.Error("payload list should not be mutated")
	}
}

func TestPasteListStep_Empty(t *testing.T) {
	req, rec, _ := newRequest(nil)

	if _, err := NewPasteListStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Count("TypeText") != 0 {
		t.Error("empty list should not type anything")
	}
}

// Process Tests

func TestSpawnTargetStep_Dynamic(t *testing.T) {
	req, rec, sl := newRequest(map[string]any{"useDynamic": true})
	req.Context.Set(engine.KeyTargetPath, "/accounts/1/app")

	if _, err := NewSpawnTargetStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Count("Spawn") != 1 {
		t.Errorf("expected spawn, got %v", rec.Methods())
	}
	if req.Context.GetInt(engine.KeyTargetHandle) == 0 {
		t.Error("handle should be stored in context")
	}
	// waitAfterLaunch по умолчанию 2 секунды
	if sl.Total() != 2*time.Second {
		t.Errorf("expected 2s wait, got %v", sl.Total())
	}
}

func TestSpawnTargetStep_ReusesLiveHandle(t *testing.T) {
	req, rec, _ := newRequest(map[string]any{"useDynamic": true})
	req.Context.Set(engine.KeyTargetPath, "/accounts/1/app")
	req.Context.Set(engine.KeyTargetHandle, 42)
	rec.SetAlive("/accounts/1/app", true)

	resp, err := NewSpawnTargetStep().Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Count("Spawn") != 0 {
		t.Error("live handle should be reused")
	}
	if resp.Outputs["reused"] != true {
		t.Errorf("unexpected outputs: %v", resp.Outputs)
	}
}

func TestSpawnTargetStep_NoPath(t *testing.T) {
	req, _, _ := newRequest(map[string]any{"useDynamic": true})

	if _, err := NewSpawnTargetStep().Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestTerminateTargetStep(t *testing.T) {
	// По handle
	req, rec, _ := newRequest(map[string]any{"usePid": true})
	req.Context.Set(engine.KeyTargetHandle, 7)

	if _, err := NewTerminateTargetStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Count("Terminate") != 1 {
		t.Errorf("expected Terminate, got %v", rec.Methods())
	}
	if _, ok := req.Context.Get(engine.KeyTargetHandle); ok {
		t.Error("handle should be removed from context")
	}

	// По пути из контекста
	req, rec, _ = newRequest(nil)
	req.Context.Set(engine.KeyTargetPath, "/accounts/1/app")
	if _, err := NewTerminateTargetStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Count("TerminateByPath") != 1 {
		t.Errorf("expected TerminateByPath, got %v", rec.Methods())
	}

	// Ни handle, ни пути
	req, _, _ = newRequest(map[string]any{"usePid": true})
	if _, err := NewTerminateTargetStep().Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestStep_NoActuator(t *testing.T) {
	req, _, _ := newRequest(map[string]any{"x": 1.0, "y": 1.0})
	req.Actuator = nil

	if _, err := NewPointerMoveStep().Execute(context.Background(), req); !errors.Is(err, ErrNoActuator) {
		t.Errorf("expected ErrNoActuator, got %v", err)
	}
}

func TestStep_ActuatorError(t *testing.T) {
	req, rec, _ := newRequest(nil)
	boom := errors.New("boom")
	rec.FailOn("MaximizeForeground", boom)

	if _, err := NewMaximizeForegroundStep().Execute(context.Background(), req); !errors.Is(err, boom) {
		t.Errorf("expected actuator error, got %v", err)
	}
}
