package schema

import (
	"errors"
	"strings"
	"testing"
)

func hasViolationAt(err error, prefix string) bool {
	var serr *Error
	if !errors.As(err, &serr) {
		return false
	}
	for _, v := range serr.Violations {
		if strings.HasPrefix(v.Path, prefix) {
			return true
		}
	}
	return false
}

func TestValidateGraph(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		path    string
	}{
		{
			name: "editor export",
			doc: `{
				"nodes": [
					{"id": "1", "type": "launchProgram", "data": {"useDynamic": true}, "position": {"x": 10, "y": 20}},
					{"id": "2", "type": "delay", "data": {"duration": 2, "delayBefore": 1}}
				],
				"edges": [{"id": "e1", "source": "1", "target": "2"}]
			}`,
		},
		{
			name: "null edges",
			doc:  `{"nodes": [{"id": "a", "type": "delay"}], "edges": null}`,
		},
		{
			name:    "no nodes",
			doc:     `{"nodes": []}`,
			wantErr: true,
			path:    "/nodes",
		},
		{
			name:    "nodes missing",
			doc:     `{"edges": []}`,
			wantErr: true,
		},
		{
			name:    "node without type",
			doc:     `{"nodes": [{"id": "a"}]}`,
			wantErr: true,
			path:    "/nodes/0",
		},
		{
			name:    "numeric node id",
			doc:     `{"nodes": [{"id": 1, "type": "delay"}]}`,
			wantErr: true,
			path:    "/nodes/0/id",
		},
		{
			name:    "edge with empty source",
			doc:     `{"nodes": [{"id": "a", "type": "delay"}], "edges": [{"source": "", "target": "a"}]}`,
			wantErr: true,
			path:    "/edges/0/source",
		},
		{
			name:    "data is a list",
			doc:     `{"nodes": [{"id": "a", "type": "delay", "data": [1]}]}`,
			wantErr: true,
			path:    "/nodes/0/data",
		},
		{
			name:    "not JSON",
			doc:     `{"nodes": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGraph([]byte(tt.doc))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
			if tt.path != "" && !hasViolationAt(err, tt.path) {
				t.Errorf("expected violation at %s, got %v", tt.path, err)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"start", `{"command": "start"}`, false},
		{"start with options", `{"command": "start", "options": {"items_per_identity": 3, "exclude_completed": false}}`, false},
		{"launch", `{"command": "launch", "identity": "+1001", "target_path": "/a/app"}`, false},
		{"update settings", `{"command": "update_settings", "settings": {"min_ttl_sec": 60, "max_ttl_sec": 120}}`, false},
		{"clear requests for account", `{"command": "clear_join_requests", "account_id": "0b9b6f5e-3a53-4c3e-9a55-1d0f3c1b2a7e"}`, false},
		{"unknown command", `{"command": "reboot"}`, true},
		{"missing command", `{"identity": "x"}`, true},
		{"launch without path", `{"command": "launch", "identity": "x"}`, true},
		{"launch with empty identity", `{"command": "launch", "identity": "", "target_path": "/a"}`, true},
		{"settings as strings", `{"command": "update_settings", "settings": {"min_ttl_sec": "60", "max_ttl_sec": 120}}`, true},
		{"update settings without settings", `{"command": "update_settings"}`, true},
		{"negative items", `{"command": "start", "options": {"items_per_identity": -1}}`, true},
		{"bad account id", `{"command": "clear_join_requests", "account_id": "acc-1"}`, true},
		{"payload is a string", `"start"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand([]byte(tt.doc))
			if tt.wantErr && !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateCommandValue(t *testing.T) {
	// Так payload выглядит после json.Unmarshal в any
	ok := map[string]any{"command": "kill_all"}
	if err := ValidateCommandValue(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := map[string]any{"command": "launch", "identity": "x"}
	if err := ValidateCommandValue(bad); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Schema: "graph", Violations: []Violation{
		{Path: "/nodes", Message: "minimum 1 items required, but found 0 items"},
		{Message: "boom"},
	}}
	want := "document does not match schema: graph: /nodes: minimum 1 items required, but found 0 items; /: boom"
	if err.Error() != want {
		t.Errorf("unexpected message:\n got %s\nwant %s", err.Error(), want)
	}
}
