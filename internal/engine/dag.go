package engine

import (
	"github.com/shaiso/Autopilot/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Def — определение узла из графа.
	Def *domain.Node

	// ID — идентификатор узла.
	ID string

	// Index — позиция узла во входном списке.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — граф действий, подготовленный к упорядочиванию.
type DAG struct {
	// Nodes — все узлы графа (nodeID → Node).
	Nodes map[string]*Node

	// Ordered — узлы во входном порядке.
	Ordered []*Node

	// Order — топологически отсортированный список узлов.
	// При нестрогом режиме узлы циклов в него не попадают.
	Order []*Node

	// Dropped — узлы, не попавшие в Order из-за циклов.
	Dropped []*Node
}

// BuildDAG строит DAG из графа.
//
// Рёбра на несуществующие узлы игнорируются (их ловит Validate),
// повторные рёбра учитываются один раз. Ошибок не возвращает:
// узлы, входящие в цикл, оказываются в Dropped.
func BuildDAG(g *domain.Graph) *DAG {
	dag := &DAG{
		Nodes:   make(map[string]*Node, len(g.Nodes)),
		Ordered: make([]*Node, 0, len(g.Nodes)),
	}

	// Первый проход: создаём все узлы
	for i := range g.Nodes {
		def := &g.Nodes[i]
		if _, exists := dag.Nodes[def.ID]; exists {
			// Дубликат ID: выполняется первый объявленный
			continue
		}
		node := &Node{
			Def:        def,
			ID:         def.ID,
			Index:      len(dag.Ordered),
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[def.ID] = node
		dag.Ordered = append(dag.Ordered, node)
	}

	// Второй проход: связываем узлы по рёбрам
	for _, e := range g.Edges {
		from, ok := dag.Nodes[e.Source]
		if !ok {
			continue
		}
		to, ok := dag.Nodes[e.Target]
		if !ok {
			continue
		}
		dag.addEdge(from, to)
	}

	dag.Order, dag.Dropped = dag.topologicalSort()
	return dag
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
//
// Очередь готовых узлов — FIFO. Её начальное содержимое идёт во входном
// порядке, освободившиеся узлы встают в хвост в порядке рёбер.
// Возвращает порядок и узлы, которые так и не освободились (циклы).
func (d *DAG) topologicalSort() ([]*Node, []*Node) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, 0, len(d.Ordered))
	for _, node := range d.Ordered {
		if node.InDegree == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]*Node, 0, len(d.Ordered))
	placed := make(map[string]bool, len(d.Ordered))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		placed[node.ID] = true

		// Уменьшаем inDegree у зависимых узлов
		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	var dropped []*Node
	for _, node := range d.Ordered {
		if !placed[node.ID] {
			dropped = append(dropped, node)
		}
	}

	return order, dropped
}

// HasCycle возвращает true, если часть узлов не попала в порядок.
func (d *DAG) HasCycle() bool {
	return len(d.Dropped) > 0
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Ordered)
}

// Order возвращает узлы графа в порядке выполнения.
//
// Никогда не возвращает ошибку: узлы, которые не освобождаются
// из-за циклов, просто пропускаются. Результат — подмножество входа,
// в котором для каждого ребра (s, t) s стоит раньше t.
func Order(g *domain.Graph) []domain.Node {
	return defs(BuildDAG(g).Order)
}

// OrderStrict — как Order, но при наличии цикла возвращает
// ErrCyclicDependency с перечнем узлов, которые не удалось упорядочить.
func OrderStrict(g *domain.Graph) ([]domain.Node, error) {
	dag := BuildDAG(g)
	if dag.HasCycle() {
		ids := make([]string, len(dag.Dropped))
		for i, n := range dag.Dropped {
			ids[i] = n.ID
		}
		return nil, &CycleError{NodeIDs: ids}
	}
	return defs(dag.Order), nil
}

// CycleError — граф содержит цикл.
type CycleError struct {
	NodeIDs []string // узлы, не попавшие в порядок
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	msg := ErrCyclicDependency.Error() + ":"
	for i, id := range e.NodeIDs {
		if i > 0 {
			msg += ","
		}
		msg += " " + id
	}
	return msg
}

// Unwrap возвращает ErrCyclicDependency.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

func defs(nodes []*Node) []domain.Node {
	out := make([]domain.Node, len(nodes))
	for i, n := range nodes {
		out[i] = *n.Def
	}
	return out
}
