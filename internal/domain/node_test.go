package domain

import (
	"encoding/json"
	"testing"
)

func TestParseNodeKind(t *testing.T) {
	tests := []struct {
		in    string
		want  NodeKind
		known bool
	}{
		{"delay", NodeKindDelay, true},
		{"pointerClick", NodeKindPointerClick, true},
		{"mouseClick", NodeKindPointerClick, true},
		{"pasteChannelLinks", NodeKindPasteList, true},
		{"launchProgram", NodeKindSpawnTarget, true},
		{"closeProgram", NodeKindTerminateTarget, true},
		{"maximizeWindow", NodeKindMaximizeForeground, true},
		{"screenshot", NodeKind("screenshot"), false},
		{"", NodeKind(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, known := ParseNodeKind(tt.in)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if known != tt.known {
				t.Errorf("expected known=%v, got %v", tt.known, known)
			}
		})
	}
}

func TestAllNodeKinds(t *testing.T) {
	kinds := AllNodeKinds()
	if len(kinds) != 14 {
		t.Fatalf("expected 14 kinds, got %d", len(kinds))
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] >= kinds[i] {
			t.Errorf("kinds not sorted: %s >= %s", kinds[i-1], kinds[i])
		}
	}
}

func TestGraph_UnmarshalEditorExport(t *testing.T) {
	raw := `{
		"nodes": [
			{"id": "1", "type": "launchProgram", "data": {"useDynamic": true}, "position": {"x": 10, "y": 20}},
			{"id": "2", "type": "mouseClick", "data": {"x": 41, "y": 53}},
			{"id": "3", "type": "teleport", "data": {}}
		],
		"edges": [
			{"id": "e1", "source": "1", "target": "2"}
		]
	}`

	var g Graph
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	if g.Nodes[0].Kind != NodeKindSpawnTarget {
		t.Errorf("legacy kind not normalised: %s", g.Nodes[0].Kind)
	}
	if g.Nodes[1].Kind != NodeKindPointerClick {
		t.Errorf("legacy kind not normalised: %s", g.Nodes[1].Kind)
	}
	// Неизвестный тип сохраняется как есть
	if g.Nodes[2].Kind != "teleport" || g.Nodes[2].Kind.IsKnown() {
		t.Errorf("unknown kind should survive decoding, got %s", g.Nodes[2].Kind)
	}
	if g.Nodes[0].Position == nil || g.Nodes[0].Position.X != 10 {
		t.Error("position should be decoded")
	}
	if g.NodeByID("2") == nil {
		t.Error("NodeByID should find node 2")
	}
	if g.NodeByID("missing") != nil {
		t.Error("NodeByID should return nil for missing node")
	}
}

func TestAccount_TargetPath(t *testing.T) {
	a := Account{FolderPath: "/opt/tg/acc1"}
	if got := a.TargetPath(""); got != "/opt/tg/acc1/Telegram.exe" {
		t.Errorf("unexpected path: %s", got)
	}
	if got := a.TargetPath("client"); got != "/opt/tg/acc1/client" {
		t.Errorf("unexpected path: %s", got)
	}

	a.ExePath = "/custom/bin"
	if got := a.TargetPath("client"); got != "/custom/bin" {
		t.Errorf("ExePath should win, got %s", got)
	}
}

func TestRunState(t *testing.T) {
	if !RunStateCompleted.IsTerminal() || !RunStateFailed.IsTerminal() {
		t.Error("completed and failed are terminal")
	}
	if RunStateCancelling.IsTerminal() {
		t.Error("cancelling is not terminal")
	}
	if !RunStatePaused.IsActive() || RunStateIdle.IsActive() {
		t.Error("paused is active, idle is not")
	}
}
