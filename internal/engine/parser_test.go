package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/schema"
)

func TestParseGraph_Valid(t *testing.T) {
	raw := `{
		"nodes": [
			{"id": "1", "type": "launchProgram", "data": {"useDynamic": true}},
			{"id": "2", "type": "delay", "data": {"duration": 2}},
			{"id": "3", "type": "pasteChannelLinks", "data": {"channelCount": 3}}
		],
		"edges": [
			{"source": "1", "target": "2"},
			{"source": "2", "target": "3"}
		]
	}`

	g, err := ParseGraph([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(g.Nodes))
	}
	if g.Nodes[2].Kind != domain.NodeKindPasteList {
		t.Errorf("expected pasteList, got %s", g.Nodes[2].Kind)
	}
}

func TestParseGraph_InvalidJSON(t *testing.T) {
	_, err := ParseGraph([]byte(`{"nodes": [`))
	if !errors.Is(err, ErrGraphParse) {
		t.Errorf("expected ErrGraphParse, got %v", err)
	}
}

func TestParseGraph_SchemaViolations(t *testing.T) {
	tests := map[string]string{
		"no nodes":          `{"nodes": [], "edges": []}`,
		"node without type": `{"nodes": [{"id": "a"}]}`,
		"numeric id":        `{"nodes": [{"id": 7, "type": "delay"}]}`,
		"edge without target": `{
			"nodes": [{"id": "a", "type": "delay"}],
			"edges": [{"source": "a"}]
		}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGraph([]byte(raw))
			if !errors.Is(err, ErrGraphParse) {
				t.Errorf("expected ErrGraphParse, got %v", err)
			}
			if !errors.Is(err, schema.ErrInvalidDocument) {
				t.Errorf("expected schema violation, got %v", err)
			}
		})
	}
}

func TestParseGraph_StructuralChecksAfterSchema(t *testing.T) {
	// Форма верна, но ID повторяется и ребро ведёт в никуда
	dup := `{"nodes": [{"id": "a", "type": "delay"}, {"id": "a", "type": "delay"}]}`
	if _, err := ParseGraph([]byte(dup)); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("expected ErrDuplicateNodeID, got %v", err)
	}

	dangling := `{"nodes": [{"id": "a", "type": "delay"}], "edges": [{"source": "a", "target": "b"}]}`
	if _, err := ParseGraph([]byte(dangling)); !errors.Is(err, ErrUnknownEdgeNode) {
		t.Errorf("expected ErrUnknownEdgeNode, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		graph   *domain.Graph
		wantErr error
	}{
		{
			name:    "nil graph",
			graph:   nil,
			wantErr: ErrEmptyGraph,
		},
		{
			name:    "no nodes",
			graph:   &domain.Graph{},
			wantErr: ErrEmptyGraph,
		},
		{
			name: "empty id",
			graph: &domain.Graph{Nodes: []domain.Node{
				{ID: "", Kind: domain.NodeKindDelay},
			}},
			wantErr: ErrEmptyNodeID,
		},
		{
			name: "duplicate id",
			graph: &domain.Graph{Nodes: []domain.Node{
				{ID: "a", Kind: domain.NodeKindDelay},
				{ID: "a", Kind: domain.NodeKindKeyPress},
			}},
			wantErr: ErrDuplicateNodeID,
		},
		{
			name: "empty kind",
			graph: &domain.Graph{Nodes: []domain.Node{
				{ID: "a"},
			}},
			wantErr: ErrEmptyNodeKind,
		},
		{
			name: "edge to unknown node",
			graph: &domain.Graph{
				Nodes: []domain.Node{{ID: "a", Kind: domain.NodeKindDelay}},
				Edges: []domain.Edge{{Source: "a", Target: "b"}},
			},
			wantErr: ErrUnknownEdgeNode,
		},
		{
			name: "edge from unknown node",
			graph: &domain.Graph{
				Nodes: []domain.Node{{ID: "a", Kind: domain.NodeKindDelay}},
				Edges: []domain.Edge{{Source: "x", Target: "a"}},
			},
			wantErr: ErrUnknownEdgeNode,
		},
		{
			name: "self edge",
			graph: &domain.Graph{
				Nodes: []domain.Node{{ID: "a", Kind: domain.NodeKindDelay}},
				Edges: []domain.Edge{{Source: "a", Target: "a"}},
			},
			wantErr: ErrSelfEdge,
		},
		{
			name: "unknown kind is allowed",
			graph: &domain.Graph{Nodes: []domain.Node{
				{ID: "a", Kind: "teleport"},
			}},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.graph)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("n1", "id", "boom", ErrEmptyNodeID)
	if err.Error() != "node n1: boom" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrEmptyNodeID) {
		t.Error("should unwrap to ErrEmptyNodeID")
	}

	noNode := NewValidationError("", "id", "boom", nil)
	if noNode.Error() != "boom" {
		t.Errorf("unexpected message: %s", noNode.Error())
	}
}

func TestUnknownKinds(t *testing.T) {
	g := &domain.Graph{Nodes: []domain.Node{
		{ID: "a", Kind: domain.NodeKindDelay},
		{ID: "b", Kind: "teleport"},
	}}

	got := UnknownKinds(g)
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("expected [b], got %v", got)
	}
}

func TestFallbackGraph(t *testing.T) {
	g := FallbackGraph()
	if err := Validate(g); err != nil {
		t.Fatalf("fallback graph should be valid: %v", err)
	}

	order := ids(Order(g))
	want := []string{"launch", "settle", "maximize", "linger", "close"}
	if !equalIDs(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}
