package engine

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/schema"
)

// ParseGraph разбирает граф из JSON экспорта редактора и валидирует его.
//
// Сначала документ проверяется схемой графа (форма и типы полей),
// затем структурно через Validate.
func ParseGraph(data []byte) (*domain.Graph, error) {
	if err := schema.ValidateGraph(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGraphParse, err)
	}

	var g domain.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphParse, err)
	}

	if err := Validate(&g); err != nil {
		return nil, err
	}

	return &g, nil
}

// Validate выполняет структурную валидацию графа.
//
// Проверяет:
// - Наличие узлов
// - Непустые и уникальные ID узлов
// - Непустой тип узла (неизвестный тип допустим, он пропускается при выполнении)
// - Рёбра ссылаются на существующие узлы и не замкнуты на себя
//
// Циклы здесь не проверяются: это решает политика упорядочивания.
func Validate(g *domain.Graph) error {
	if g == nil || len(g.Nodes) == 0 {
		return ErrEmptyGraph
	}

	nodeIDs := make(map[string]bool, len(g.Nodes))

	for i := range g.Nodes {
		if err := ValidateNode(&g.Nodes[i], nodeIDs); err != nil {
			return err
		}
	}

	for _, e := range g.Edges {
		if err := validateEdge(e, nodeIDs); err != nil {
			return err
		}
	}

	return nil
}

// ValidateNode валидирует один узел.
// nodeIDs — уже встреченные ID узлов (для проверки уникальности).
func ValidateNode(node *domain.Node, nodeIDs map[string]bool) error {
	if node.ID == "" {
		return NewValidationError("", "id", "node has empty ID", ErrEmptyNodeID)
	}

	if nodeIDs[node.ID] {
		return NewValidationError(node.ID, "id",
			fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
	}
	nodeIDs[node.ID] = true

	if node.Kind == "" {
		return NewValidationError(node.ID, "type",
			"node has empty kind", ErrEmptyNodeKind)
	}

	return nil
}

// validateEdge проверяет, что ребро соединяет два существующих разных узла.
func validateEdge(e domain.Edge, nodeIDs map[string]bool) error {
	if !nodeIDs[e.Source] {
		return NewValidationError(e.Target, "source",
			fmt.Sprintf("edge from unknown node: %s", e.Source), ErrUnknownEdgeNode)
	}
	if !nodeIDs[e.Target] {
		return NewValidationError(e.Source, "target",
			fmt.Sprintf("edge to unknown node: %s", e.Target), ErrUnknownEdgeNode)
	}
	if e.Source == e.Target {
		return NewValidationError(e.Source, "target",
			"edge points to its own source", ErrSelfEdge)
	}
	return nil
}

// UnknownKinds возвращает ID узлов с типами вне закрытого набора.
// Используется API для предупреждения при импорте.
func UnknownKinds(g *domain.Graph) []string {
	var ids []string
	for _, n := range g.Nodes {
		if !n.Kind.IsKnown() {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// FallbackGraph возвращает упрощённый сценарий для случая,
// когда default workflow не задан: запустить приложение аккаунта,
// подождать, развернуть окно и закрыть.
func FallbackGraph() *domain.Graph {
	return &domain.Graph{
		Nodes: []domain.Node{
			{ID: "launch", Kind: domain.NodeKindSpawnTarget, Config: map[string]any{"useDynamic": true, "waitAfterLaunch": 2}},
			{ID: "settle", Kind: domain.NodeKindDelay, Config: map[string]any{"duration": 3}},
			{ID: "maximize", Kind: domain.NodeKindMaximizeForeground},
			{ID: "linger", Kind: domain.NodeKindDelay, Config: map[string]any{"duration": 1}},
			{ID: "close", Kind: domain.NodeKindTerminateTarget, Config: map[string]any{"usePid": true}},
		},
		Edges: []domain.Edge{
			{Source: "launch", Target: "settle"},
			{Source: "settle", Target: "maximize"},
			{Source: "maximize", Target: "linger"},
			{Source: "linger", Target: "close"},
		},
	}
}
