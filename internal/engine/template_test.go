package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestContext_GetSet(t *testing.T) {
	seed := map[string]any{KeyIdentity: "+100"}
	ctx := NewContext(seed)

	// Контекст не делит map с вызывающим
	seed[KeyIdentity] = "changed"
	if ctx.GetString(KeyIdentity) != "+100" {
		t.Error("context should copy seed")
	}

	ctx.Set(KeyTargetHandle, 42)
	if ctx.GetInt(KeyTargetHandle) != 42 {
		t.Errorf("expected 42, got %d", ctx.GetInt(KeyTargetHandle))
	}

	ctx.Set("float", 3.0)
	if ctx.GetInt("float") != 3 {
		t.Error("float should convert to int")
	}

	ctx.Delete(KeyTargetHandle)
	if _, ok := ctx.Get(KeyTargetHandle); ok {
		t.Error("key should be deleted")
	}

	if ctx.GetString("missing") != "" {
		t.Error("missing string should be empty")
	}
}

func TestContext_GetStrings(t *testing.T) {
	ctx := NewContext(map[string]any{
		"typed":   []string{"a", "b"},
		"untyped": []any{"c", 1, "d"},
	})

	if got := ctx.GetStrings("typed"); len(got) != 2 || got[1] != "b" {
		t.Errorf("unexpected typed list: %v", got)
	}
	if got := ctx.GetStrings("untyped"); len(got) != 2 || got[1] != "d" {
		t.Errorf("unexpected untyped list: %v", got)
	}
	if got := ctx.GetStrings("missing"); got != nil {
		t.Errorf("missing list should be nil, got %v", got)
	}
}

func TestContext_SnapshotIsCopy(t *testing.T) {
	ctx := NewContext(map[string]any{"a": 1})
	snap := ctx.Snapshot()
	snap["a"] = 2

	if ctx.GetInt("a") != 1 {
		t.Error("snapshot should not alias context data")
	}
}

func TestRender(t *testing.T) {
	ctx := NewContext(map[string]any{
		KeyIdentity:    "+7900",
		KeyPayloadList: []string{"t.me/a", "t.me/b"},
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain text", "hello", "hello"},
		{"identity", "acc {{ .identityKey }}", "acc +7900"},
		{"join", `{{ join "," .payloadList }}`, "t.me/a,t.me/b"},
		{"default", `{{ default "none" .accountId }}`, "none"},
		{"missing key", "[{{ .nothing }}]", "[]"},
		{"upper", `{{ upper "abc" }}`, "ABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{ .identityKey ", NewContext(nil))
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestRenderConfig(t *testing.T) {
	ctx := NewContext(map[string]any{KeyIdentity: "+1"})

	cfg := map[string]any{
		"text":  "hi {{ .identityKey }}",
		"x":     10,
		"keys":  []any{"ctrl", "{{ .identityKey }}"},
		"inner": map[string]any{"v": "{{ .identityKey }}"},
	}

	got, err := RenderConfig(cfg, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["text"] != "hi +1" {
		t.Errorf("unexpected text: %v", got["text"])
	}
	if got["x"] != 10 {
		t.Errorf("numbers should pass through, got %v", got["x"])
	}
	if keys := got["keys"].([]any); keys[1] != "+1" {
		t.Errorf("list items should render, got %v", keys)
	}
	if inner := got["inner"].(map[string]any); inner["v"] != "+1" {
		t.Errorf("nested map should render, got %v", inner)
	}

	// Исходный конфиг не меняется
	if cfg["text"] != "hi {{ .identityKey }}" {
		t.Error("RenderConfig must not mutate input")
	}

	empty, err := RenderConfig(nil, ctx)
	if err != nil || empty == nil {
		t.Error("nil config should render to empty map")
	}
}

func TestRender_ListHelpers(t *testing.T) {
	ctx := NewContext(map[string]any{
		KeyPayloadList: []any{"t.me/a", "t.me/b", "t.me/c"},
	})

	got, err := Render(`{{ count .payloadList }}: {{ lines .payloadList }}`, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != "3: t.me/a\nt.me/b\nt.me/c" {
		t.Errorf("got %q", got)
	}

	// Повторный рендер берёт разобранный шаблон из кэша
	again, err := Render(`{{ count .payloadList }}: {{ lines .payloadList }}`, NewContext(nil))
	if err != nil || again != "0: " {
		t.Errorf("second render = %q, %v", again, err)
	}
}

func TestRenderConfig_ErrorNamesKey(t *testing.T) {
	_, err := RenderConfig(map[string]any{"text": "{{ .x "}, NewContext(nil))
	if !errors.Is(err, ErrTemplateParse) || !strings.Contains(err.Error(), "text") {
		t.Errorf("err = %v", err)
	}
}
