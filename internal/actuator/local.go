package actuator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// Local — Actuator для текущего хоста.
//
// Управление процессами:
//   - Spawn запускает файл через os/exec в его папке и сразу отпускает
//     (Wait вызывается в фоне, чтобы не копить зомби)
//   - Terminate убивает процесс по PID
//   - TerminateByPath и IsAlive сканируют /proc и сравнивают путь exe
//
// Ввод делегируется InputDriver.
type Local struct {
	input  InputDriver
	procFS string
	logger *slog.Logger

	mu    sync.Mutex
	procs map[Handle]*os.Process
}

// LocalConfig — конфигурация Local.
type LocalConfig struct {
	// Input — драйвер ввода (default: LogInput).
	Input InputDriver

	// ProcFS — точка монтирования procfs (default: /proc).
	ProcFS string

	// Logger
	Logger *slog.Logger
}

// NewLocal создаёт Local.
func NewLocal(cfg LocalConfig) *Local {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	input := cfg.Input
	if input == nil {
		input = NewLogInput(logger)
	}

	procFS := cfg.ProcFS
	if procFS == "" {
		procFS = procfs.DefaultMountPoint
	}

	return &Local{
		input:  input,
		procFS: procFS,
		logger: logger.With("component", "actuator"),
		procs:  make(map[Handle]*os.Process),
	}
}

func (l *Local) MoveCursor(ctx context.Context, x, y int) error {
	return l.input.Move(ctx, x, y)
}

func (l *Local) Click(ctx context.Context, x, y int, button Button) error {
	if err := l.input.Move(ctx, x, y); err != nil {
		return err
	}
	if err := l.input.Down(ctx, button); err != nil {
		return err
	}
	return l.input.Up(ctx, button)
}

func (l *Local) ButtonDown(ctx context.Context, button Button) error {
	return l.input.Down(ctx, button)
}

func (l *Local) ButtonUp(ctx context.Context, button Button) error {
	return l.input.Up(ctx, button)
}

func (l *Local) Scroll(ctx context.Context, delta int) error {
	return l.input.Wheel(ctx, delta)
}

func (l *Local) SendKey(ctx context.Context, key string) error {
	return l.input.Key(ctx, key)
}

func (l *Local) SendCombo(ctx context.Context, keys []string) error {
	return l.input.Combo(ctx, keys)
}

// TypeText вводит текст целиком или посимвольно.
// Пауза между символами не прерывается отменой run, только закрытием ctx.
func (l *Local) TypeText(ctx context.Context, text string, slow bool, perCharDelay time.Duration) error {
	if !slow {
		return l.input.Type(ctx, text)
	}

	for _, r := range text {
		if err := l.input.Type(ctx, string(r)); err != nil {
			return err
		}
		if perCharDelay <= 0 {
			continue
		}
		timer := time.NewTimer(perCharDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (l *Local) MaximizeForeground(ctx context.Context) error {
	return l.input.Maximize(ctx)
}

func (l *Local) Focus(ctx context.Context, h Handle) error {
	if h.IsZero() {
		return ErrNoHandle
	}
	return l.input.Focus(ctx, int(h))
}

// Spawn запускает исполняемый файл.
//
// Процесс не привязан к ctx: он должен пережить run, который его запустил.
func (l *Local) Spawn(ctx context.Context, path string) (Handle, error) {
	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, path, err)
	}

	h := Handle(cmd.Process.Pid)

	l.mu.Lock()
	l.procs[h] = cmd.Process
	l.mu.Unlock()

	// Забираем код завершения в фоне
	go func() {
		err := cmd.Wait()
		l.mu.Lock()
		delete(l.procs, h)
		l.mu.Unlock()
		l.logger.Debug("process exited", "pid", int(h), "path", path, "error", err)
	}()

	l.logger.Info("process spawned", "pid", int(h), "path", path)
	return h, nil
}

// Terminate завершает процесс по handle.
// Уже завершённый процесс ошибкой не считается.
func (l *Local) Terminate(ctx context.Context, h Handle) error {
	if h.IsZero() {
		return ErrNoHandle
	}

	l.mu.Lock()
	proc, ok := l.procs[h]
	l.mu.Unlock()

	if !ok {
		var err error
		proc, err = os.FindProcess(int(h))
		if err != nil {
			return nil
		}
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", h, err)
	}
	return nil
}

// TerminateByPath завершает все процессы, чей exe совпадает с path.
func (l *Local) TerminateByPath(ctx context.Context, path string) error {
	pids, err := l.findByPath(path)
	if err != nil {
		return err
	}

	var errs []error
	for _, pid := range pids {
		if err := l.Terminate(ctx, Handle(pid)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(pids) > 0 {
		l.logger.Info("terminated by path", "path", path, "count", len(pids))
	}
	return errors.Join(errs...)
}

// IsAlive проверяет наличие процесса с данным exe.
func (l *Local) IsAlive(ctx context.Context, path string) (bool, error) {
	pids, err := l.findByPath(path)
	if err != nil {
		return false, err
	}
	return len(pids) > 0, nil
}

// TargetExists проверяет, что файл существует и не является папкой.
func (l *Local) TargetExists(ctx context.Context, path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// findByPath возвращает PID всех процессов с exe == path.
func (l *Local) findByPath(path string) ([]int, error) {
	want := canonicalPath(path)

	fs, err := procfs.NewFS(l.procFS)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}

	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var pids []int
	for _, p := range procs {
		exe, err := p.Executable()
		if err != nil || exe == "" {
			// Чужие процессы без прав на readlink пропускаем
			continue
		}
		if canonicalPath(exe) == want {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

// canonicalPath приводит путь к виду, пригодному для сравнения.
func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}
