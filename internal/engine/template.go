package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Подстановки в конфигурации узлов.
//
// Строковые поля могут ссылаться на ключи Execution Context:
//
//	{{ .identityKey }}
//	{{ lines .payloadList }}
//	{{ index .payloadList 0 }}
//	{{ default "n/a" .accountId }}
//
// Отсутствующий ключ даёт пустую строку.

var nodeFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},

	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"join":  joinItems,
	"lines": func(items any) string { return joinItems("\n", items) },
	"count": func(items any) int { return len(toStrings(items)) },

	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
}

// parsed — разобранные шаблоны. Граф один на весь проход, поэтому
// одни и те же строки рендерятся для каждой идентичности.
var parsed sync.Map // string → *template.Template

func joinItems(sep string, items any) string {
	return strings.Join(toStrings(items), sep)
}

func toStrings(items any) []string {
	switch list := items.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, len(list))
		for i, v := range list {
			out[i] = fmt.Sprint(v)
		}
		return out
	}
	return nil
}

func compile(src string) (*template.Template, error) {
	if t, ok := parsed.Load(src); ok {
		return t.(*template.Template), nil
	}
	t, err := template.New("node").Funcs(nodeFuncs).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	parsed.Store(src, t)
	return t, nil
}

// Render подставляет значения Execution Context в строку.
// Строки без "{{" возвращаются как есть.
func Render(src string, ctx *Context) (string, error) {
	if !strings.Contains(src, "{{") {
		return src, nil
	}

	t, err := compile(src)
	if err != nil {
		return "", err
	}

	var data map[string]any
	if ctx != nil {
		data = ctx.Snapshot()
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// RenderConfig возвращает копию конфигурации узла с подставленными
// значениями во всех строках, включая вложенные map и списки.
func RenderConfig(config map[string]any, ctx *Context) (map[string]any, error) {
	out := make(map[string]any, len(config))
	for key, val := range config {
		rendered, err := renderValue(val, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = rendered
	}
	return out, nil
}

func renderValue(value any, ctx *Context) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, ctx)

	case map[string]any:
		return RenderConfig(v, ctx)

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			rendered, err := renderValue(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil

	default:
		// числа, bool и nil
		return value, nil
	}
}
