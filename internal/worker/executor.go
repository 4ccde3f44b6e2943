package worker

import (
	"context"
	"errors"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
	"github.com/shaiso/Autopilot/internal/steps"
	"github.com/shaiso/Autopilot/internal/telemetry"
)

// Статусы узлов для метрик.
const (
	nodeStatusCompleted = "completed"
	nodeStatusFailed    = "failed"
	nodeStatusSkipped   = "skipped"
)

// dispatch выполняет один узел.
//
// Неизвестный тип узла не ошибка: узел пропускается с предупреждением.
// Любая ошибка обработчика завершает запуск, уже сделанные действия
// не откатываются.
func (w *Worker) dispatch(ctx context.Context, node *domain.Node, run *runState) error {
	logger := telemetry.WithNodeID(run.logger, node.ID)
	kind := node.Kind

	step, err := w.registry.Get(kind)
	if err != nil {
		if errors.Is(err, steps.ErrStepNotFound) {
			logger.Warn("unknown node kind, skipping", "kind", kind)
			run.result.NodesSkipped++
			telemetry.NodesTotal.WithLabelValues(string(kind), nodeStatusSkipped).Inc()
			w.emit(run, domain.EventNodeSkipped, node.ID, map[string]any{"kind": string(kind)})
			return nil
		}
		return &NodeError{NodeID: node.ID, Kind: kind, Err: err}
	}

	run.result.LastNodeID = node.ID
	w.emit(run, domain.EventNodeStarted, node.ID, map[string]any{"kind": string(kind)})
	logger.Debug("node started", "kind", kind)

	config, err := engine.RenderConfig(node.Config, run.ectx)
	if err != nil {
		return w.nodeFailed(run, node, &NodeError{NodeID: node.ID, Kind: kind, Err: err})
	}

	resp, err := step.Execute(telemetry.WithLogger(ctx, logger), &steps.Request{
		NodeID:   node.ID,
		Config:   config,
		Context:  run.ectx,
		Actuator: w.actuator,
		Sleeper:  w.sleeper,
		Rand:     w.rand,
	})
	if err != nil {
		return w.nodeFailed(run, node, &NodeError{NodeID: node.ID, Kind: kind, Err: err})
	}

	run.result.NodesExecuted++
	telemetry.NodesTotal.WithLabelValues(string(kind), nodeStatusCompleted).Inc()

	var outputs map[string]any
	if resp != nil {
		outputs = resp.Outputs
	}
	w.emit(run, domain.EventNodeCompleted, node.ID, map[string]any{
		"kind":    string(kind),
		"outputs": outputs,
	})
	logger.Debug("node completed", "kind", kind)

	return nil
}

func (w *Worker) nodeFailed(run *runState, node *domain.Node, err *NodeError) error {
	telemetry.NodesTotal.WithLabelValues(string(node.Kind), nodeStatusFailed).Inc()
	run.logger.Warn("node failed", "node_id", node.ID, "kind", node.Kind, "error", err.Err)
	return err
}
