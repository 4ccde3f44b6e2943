package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	//go:embed graph.schema.json
	graphSchemaJSON []byte

	//go:embed command.schema.json
	commandSchemaJSON []byte
)

// ErrInvalidDocument — документ не соответствует схеме.
var ErrInvalidDocument = errors.New("document does not match schema")

// Violation — одно нарушение схемы.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error — документ не прошёл проверку схемой.
type Error struct {
	Schema     string
	Violations []Violation
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		path := v.Path
		if path == "" {
			path = "/"
		}
		parts = append(parts, path+": "+v.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDocument, e.Schema, strings.Join(parts, "; "))
}

// Unwrap возвращает ErrInvalidDocument.
func (e *Error) Unwrap() error {
	return ErrInvalidDocument
}

type compiled struct {
	graph   *jsonschema.Schema
	command *jsonschema.Schema
}

var (
	loadOnce sync.Once
	loaded   *compiled
	loadErr  error
)

// load компилирует встроенные схемы один раз на процесс.
func load() (*compiled, error) {
	loadOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		resources := map[string][]byte{
			"graph.json":   graphSchemaJSON,
			"command.json": commandSchemaJSON,
		}
		for name, data := range resources {
			if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
				loadErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}

		graph, err := compiler.Compile("graph.json")
		if err != nil {
			loadErr = fmt.Errorf("compile graph schema: %w", err)
			return
		}
		command, err := compiler.Compile("command.json")
		if err != nil {
			loadErr = fmt.Errorf("compile command schema: %w", err)
			return
		}
		loaded = &compiled{graph: graph, command: command}
	})
	return loaded, loadErr
}

// ValidateGraph проверяет JSON графа из редактора.
func ValidateGraph(data []byte) error {
	c, err := load()
	if err != nil {
		return err
	}
	return validateJSON(c.graph, "graph", data)
}

// ValidateCommand проверяет JSON команды управления.
func ValidateCommand(data []byte) error {
	c, err := load()
	if err != nil {
		return err
	}
	return validateJSON(c.command, "command", data)
}

// ValidateCommandValue проверяет уже декодированную команду
// (payload сообщения после json.Unmarshal в any).
func ValidateCommandValue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &Error{Schema: "command", Violations: []Violation{{Message: err.Error()}}}
	}
	return ValidateCommand(data)
}

func validateJSON(s *jsonschema.Schema, name string, data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &Error{Schema: name, Violations: []Violation{{Message: "invalid JSON: " + err.Error()}}}
	}

	err := s.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &Error{Schema: name, Violations: []Violation{{Message: err.Error()}}}
	}
	return &Error{Schema: name, Violations: violations(verr)}
}

// violations собирает листовые причины: верхние уровни дерева
// содержат только общее "doesn't validate".
func violations(verr *jsonschema.ValidationError) []Violation {
	if len(verr.Causes) == 0 {
		return []Violation{{Path: verr.InstanceLocation, Message: verr.Message}}
	}
	var out []Violation
	for _, cause := range verr.Causes {
		out = append(out, violations(cause)...)
	}
	return out
}
