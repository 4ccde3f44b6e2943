package domain

import (
	"encoding/json"
	"sort"
)

// NodeKind — тип узла графа действий.
//
// Набор типов закрыт: для каждого известного типа в steps.DefaultRegistry
// есть обработчик. Неизвестные типы переживают декодирование JSON
// (графы из редактора могут быть новее агента) и пропускаются при выполнении.
type NodeKind string

const (
	// NodeKindDelay — фиксированная пауза.
	NodeKindDelay NodeKind = "delay"

	// NodeKindRandomDelay — пауза случайной длительности в диапазоне.
	NodeKindRandomDelay NodeKind = "randomDelay"

	// NodeKindPointerMove — перемещение курсора.
	NodeKindPointerMove NodeKind = "pointerMove"

	// NodeKindPointerClick — клик в точке.
	NodeKindPointerClick NodeKind = "pointerClick"

	// NodeKindPointerDoubleClick — двойной клик в точке.
	NodeKindPointerDoubleClick NodeKind = "pointerDoubleClick"

	// NodeKindPointerScroll — прокрутка колесом.
	NodeKindPointerScroll NodeKind = "pointerScroll"

	// NodeKindPointerDrag — перетаскивание с зажатой кнопкой.
	NodeKindPointerDrag NodeKind = "pointerDrag"

	// NodeKindKeyPress — нажатие одной клавиши.
	NodeKindKeyPress NodeKind = "keyPress"

	// NodeKindKeyCombo — комбинация клавиш (ctrl+v и т.п.).
	NodeKindKeyCombo NodeKind = "keyCombo"

	// NodeKindTypeText — ввод текста.
	NodeKindTypeText NodeKind = "typeText"

	// NodeKindPasteList — ввод выборки из списка payload.
	NodeKindPasteList NodeKind = "pasteList"

	// NodeKindSpawnTarget — запуск целевого процесса.
	NodeKindSpawnTarget NodeKind = "spawnTarget"

	// NodeKindTerminateTarget — завершение целевого процесса.
	NodeKindTerminateTarget NodeKind = "terminateTarget"

	// NodeKindMaximizeForeground — развернуть активное окно.
	NodeKindMaximizeForeground NodeKind = "maximizeForeground"
)

// knownKinds — все известные типы узлов.
var knownKinds = map[NodeKind]bool{
	NodeKindDelay:              true,
	NodeKindRandomDelay:        true,
	NodeKindPointerMove:        true,
	NodeKindPointerClick:       true,
	NodeKindPointerDoubleClick: true,
	NodeKindPointerScroll:      true,
	NodeKindPointerDrag:        true,
	NodeKindKeyPress:           true,
	NodeKindKeyCombo:           true,
	NodeKindTypeText:           true,
	NodeKindPasteList:          true,
	NodeKindSpawnTarget:        true,
	NodeKindTerminateTarget:    true,
	NodeKindMaximizeForeground: true,
}

// legacyKinds — имена типов из старых экспортов редактора.
var legacyKinds = map[string]NodeKind{
	"mouseMove":         NodeKindPointerMove,
	"mouseClick":        NodeKindPointerClick,
	"mouseDoubleClick":  NodeKindPointerDoubleClick,
	"mouseScroll":       NodeKindPointerScroll,
	"mouseDrag":         NodeKindPointerDrag,
	"pasteChannelLinks": NodeKindPasteList,
	"launchProgram":     NodeKindSpawnTarget,
	"closeProgram":      NodeKindTerminateTarget,
	"maximizeWindow":    NodeKindMaximizeForeground,
}

// ParseNodeKind приводит строку к NodeKind.
// Старые имена редактора отображаются на канонические.
// Второе значение — false, если тип неизвестен (строка возвращается как есть).
func ParseNodeKind(s string) (NodeKind, bool) {
	if k, ok := legacyKinds[s]; ok {
		return k, true
	}
	k := NodeKind(s)
	return k, knownKinds[k]
}

// IsKnown возвращает true, если тип входит в закрытый набор.
func (k NodeKind) IsKnown() bool {
	return knownKinds[k]
}

// String возвращает строковое представление NodeKind.
func (k NodeKind) String() string {
	return string(k)
}

// UnmarshalJSON нормализует старые имена типов.
func (k *NodeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k, _ = ParseNodeKind(s)
	return nil
}

// AllNodeKinds возвращает все известные типы в алфавитном порядке.
func AllNodeKinds() []NodeKind {
	kinds := make([]NodeKind, 0, len(knownKinds))
	for k := range knownKinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Position — координаты узла в редакторе. Агентом не используется,
// но сохраняется, чтобы экспорт/импорт графа был без потерь.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node — узел графа действий.
//
// Формат JSON совпадает с экспортом редактора:
//
//	{"id": "n1", "type": "pointerClick", "data": {"x": 10, "y": 20}}
type Node struct {
	// ID — уникальный в пределах графа идентификатор.
	ID string `json:"id"`

	// Kind — тип действия.
	Kind NodeKind `json:"type"`

	// Config — параметры действия, зависят от Kind.
	// Проверяются лениво, в момент выполнения узла.
	Config map[string]any `json:"data,omitempty"`

	// Position — положение в редакторе.
	Position *Position `json:"position,omitempty"`
}

// Edge — ребро графа: Target не может выполниться раньше Source.
type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph — граф действий: упорядоченный список узлов и рёбра между ними.
//
// Порядок узлов в Nodes значим: среди готовых к выполнению узлов
// раньше выполняется тот, что объявлен раньше.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID возвращает узел по ID или nil.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}
