package control

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
	"github.com/shaiso/Autopilot/internal/steps"
	"github.com/shaiso/Autopilot/internal/worker"
)

// DryRunItemLimit — сколько элементов работы подставляется в сухой прогон.
const DryRunItemLimit = 500

// DryRunResult — итог сухого прогона графа.
type DryRunResult struct {
	RunID         string         `json:"run_id"`
	Status        string         `json:"status"`
	Error         string         `json:"error,omitempty"`
	LastNodeID    string         `json:"last_node_id,omitempty"`
	NodesExecuted int            `json:"nodes_executed"`
	NodesSkipped  int            `json:"nodes_skipped"`
	Identity      string         `json:"identity,omitempty"`
	Items         int            `json:"items"`
	Calls         []string       `json:"calls"`
	Pauses        int            `json:"pauses"`
	TotalDelay    string         `json:"total_delay"`
	Context       map[string]any `json:"context,omitempty"`
}

// TestWorkflow выполняет граф без реального ввода и без ожиданий.
//
// Контекст берётся из первой активной идентичности и всей её активной
// работы, как у настоящего прохода. Вызовы ввода пишутся в Recorder,
// паузы только запоминаются. Флот и история заявок не меняются.
func (s *Service) TestWorkflow(ctx context.Context, graph *domain.Graph) (DryRunResult, error) {
	if graph == nil {
		return DryRunResult{}, worker.ErrNilGraph
	}

	seed, identity, items, err := s.dryRunSeed(ctx)
	if err != nil {
		return DryRunResult{}, err
	}

	rec := actuator.NewRecorder()
	sleeper := &steps.InstantSleeper{}
	w := worker.New(worker.Config{
		Registry: s.registry,
		Actuator: rec,
		Sleeper:  sleeper,
		Logger:   s.logger,
	})

	res, err := w.Start(ctx, graph, engine.NewContext(seed))
	if err != nil {
		return DryRunResult{}, err
	}

	calls := make([]string, 0, len(rec.Calls()))
	for _, c := range rec.Calls() {
		calls = append(calls, c.String())
	}

	out := DryRunResult{
		RunID:         res.RunID,
		Status:        string(res.Status),
		LastNodeID:    res.LastNodeID,
		NodesExecuted: res.NodesExecuted,
		NodesSkipped:  res.NodesSkipped,
		Identity:      identity,
		Items:         items,
		Calls:         calls,
		Pauses:        len(sleeper.Slept()),
		TotalDelay:    sleeper.Total().Round(time.Millisecond).String(),
		Context:       res.Context,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}

	s.logger.Info("workflow dry run finished",
		"run_id", res.RunID, "status", res.Status, "calls", len(calls))
	return out, nil
}

func (s *Service) dryRunSeed(ctx context.Context) (map[string]any, string, int, error) {
	if s.preview == nil {
		return nil, "", 0, nil
	}

	ids, err := s.preview.ListIdentities(ctx)
	if err != nil {
		return nil, "", 0, fmt.Errorf("list identities: %w", err)
	}
	if len(ids) == 0 {
		return nil, "", 0, nil
	}

	id := ids[0]
	work, err := s.preview.PendingWork(ctx, id, DryRunItemLimit, false)
	if err != nil {
		return nil, "", 0, fmt.Errorf("pending work for %s: %w", id.Key, err)
	}

	values := make([]string, 0, len(work))
	for _, item := range work {
		values = append(values, item.Value)
	}

	return map[string]any{
		engine.KeyIdentity:    id.Key,
		engine.KeyAccountID:   id.AccountID,
		engine.KeyTargetPath:  id.TargetPath,
		engine.KeyPayloadList: values,
	}, id.Key, len(values), nil
}
