package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Call — один вызов Recorder.
type Call struct {
	Method string
	Args   []any
}

// String возвращает вызов в виде "Method(arg1, arg2)".
func (c Call) String() string {
	s := c.Method + "("
	for i, a := range c.Args {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprint(a)
	}
	return s + ")"
}

// Recorder — Actuator в памяти.
//
// Записывает все вызовы, выдаёт возрастающие handle, хранит
// "живые" пути. Живость и существование файлов можно задавать
// вручную, чтобы моделировать перезапуск процесса с новым PID
// или его падение. Используется в тестах и в режиме симуляции.
type Recorder struct {
	mu         sync.Mutex
	calls      []Call
	nextHandle Handle
	alive      map[string]bool
	handles    map[Handle]string
	missing    map[string]bool
	failures   map[string]error

	// Latency — задержка каждого вызова управления процессами.
	Latency time.Duration

	// OnCall вызывается после записи каждого вызова (вне мьютекса).
	OnCall func(Call)
}

// NewRecorder создаёт Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		nextHandle: 100,
		alive:      make(map[string]bool),
		handles:    make(map[Handle]string),
		missing:    make(map[string]bool),
		failures:   make(map[string]error),
	}
}

// SetAlive задаёт живость пути.
func (r *Recorder) SetAlive(path string, alive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alive[path] = alive
}

// SetMissing помечает файл как отсутствующий.
func (r *Recorder) SetMissing(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing[path] = true
}

// FailOn заставляет метод возвращать err (nil снимает ошибку).
func (r *Recorder) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, method)
		return
	}
	r.failures[method] = err
}

// Calls возвращает копию журнала вызовов.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods возвращает имена вызванных методов по порядку.
func (r *Recorder) Methods() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Count возвращает число вызовов метода.
func (r *Recorder) Count(method string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset очищает журнал вызовов (состояние процессов сохраняется).
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// IsAliveNow — живость пути без записи вызова.
func (r *Recorder) IsAliveNow(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive[path]
}

// record пишет вызов и возвращает запрограммированную ошибку.
func (r *Recorder) record(method string, args ...any) error {
	r.mu.Lock()
	call := Call{Method: method, Args: args}
	r.calls = append(r.calls, call)
	err := r.failures[method]
	hook := r.OnCall
	r.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return err
}

func (r *Recorder) wait(ctx context.Context) {
	if r.Latency <= 0 {
		return
	}
	timer := time.NewTimer(r.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (r *Recorder) MoveCursor(ctx context.Context, x, y int) error {
	return r.record("MoveCursor", x, y)
}

func (r *Recorder) Click(ctx context.Context, x, y int, button Button) error {
	return r.record("Click", x, y, button)
}

func (r *Recorder) ButtonDown(ctx context.Context, button Button) error {
	return r.record("ButtonDown", button)
}

func (r *Recorder) ButtonUp(ctx context.Context, button Button) error {
	return r.record("ButtonUp", button)
}

func (r *Recorder) Scroll(ctx context.Context, delta int) error {
	return r.record("Scroll", delta)
}

func (r *Recorder) SendKey(ctx context.Context, key string) error {
	return r.record("SendKey", key)
}

func (r *Recorder) SendCombo(ctx context.Context, keys []string) error {
	return r.record("SendCombo", append([]string(nil), keys...))
}

func (r *Recorder) TypeText(ctx context.Context, text string, slow bool, perCharDelay time.Duration) error {
	return r.record("TypeText", text, slow, perCharDelay)
}

func (r *Recorder) MaximizeForeground(ctx context.Context) error {
	return r.record("MaximizeForeground")
}

func (r *Recorder) Focus(ctx context.Context, h Handle) error {
	return r.record("Focus", h)
}

// Spawn выдаёт новый handle и помечает путь живым.
func (r *Recorder) Spawn(ctx context.Context, path string) (Handle, error) {
	r.wait(ctx)
	if err := r.record("Spawn", path); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHandle++
	h := r.nextHandle
	r.handles[h] = path
	r.alive[path] = true
	return h, nil
}

// Terminate помечает путь процесса мёртвым.
func (r *Recorder) Terminate(ctx context.Context, h Handle) error {
	r.wait(ctx)
	if err := r.record("Terminate", h); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if path, ok := r.handles[h]; ok {
		r.alive[path] = false
		delete(r.handles, h)
	}
	return nil
}

// TerminateByPath помечает путь мёртвым.
func (r *Recorder) TerminateByPath(ctx context.Context, path string) error {
	r.wait(ctx)
	if err := r.record("TerminateByPath", path); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.alive[path] = false
	return nil
}

func (r *Recorder) IsAlive(ctx context.Context, path string) (bool, error) {
	r.wait(ctx)
	if err := r.record("IsAlive", path); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive[path], nil
}

func (r *Recorder) TargetExists(ctx context.Context, path string) bool {
	r.record("TargetExists", path)

	r.mu.Lock()
	defer r.mu.Unlock()
	return path != "" && !r.missing[path]
}

var _ Actuator = (*Recorder)(nil)
var _ Actuator = (*Local)(nil)
