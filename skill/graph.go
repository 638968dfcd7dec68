package skill

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicateNode is returned when a node id is added twice.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrUnknownNode is returned when an edge or reference names a missing node.
	ErrUnknownNode = errors.New("unknown node")
	// ErrCycle is returned when the graph cannot be ordered.
	ErrCycle = errors.New("dependency cycle")
)

// Host says who provisions a node.
type Host int

const (
	// HostPulumi nodes are provisioned directly as Pulumi resources.
	HostPulumi Host = iota
	// HostTemplate nodes are rendered into the CloudFormation stack.
	HostTemplate
)

// Ref is the primary identifier of another node.
type Ref struct {
	Node string
}

// Attr is a named attribute of another node.
type Attr struct {
	Node string
	Name string
}

// Param is a value supplied when the graph is deployed.
type Param struct {
	Name string
}

// Node is one resource in the graph.
type Node struct {
	ID         string
	Type       string
	Host       Host
	Properties map[string]interface{}

	dependsOn []string
}

// Graph is a directed acyclic graph of resources. Edges point from a node to the nodes it
// depends on. Insertion order is kept so rendering and ordering are deterministic.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: map[string]*Node{}}
}

// Add inserts a node.
func (g *Graph) Add(node *Node) (*Node, error) {
	if _, ok := g.nodes[node.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	if node.Properties == nil {
		node.Properties = map[string]interface{}{}
	}
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return node, nil
}

// AddDependency makes from depend on to without a data reference between them.
func (g *Graph) AddDependency(from, to string) error {
	node, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	for _, id := range node.dependsOn {
		if id == to {
			return nil
		}
	}
	node.dependsOn = append(node.dependsOn, to)
	return nil
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Count returns the number of nodes of a resource type.
func (g *Graph) Count(resourceType string) int {
	n := 0
	for _, node := range g.nodes {
		if node.Type == resourceType {
			n++
		}
	}
	return n
}

// ExplicitDependencies returns the ordering-only edges of a node.
func (g *Graph) ExplicitDependencies(id string) []string {
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), node.dependsOn...)
}

// Dependencies returns the direct dependencies of a node, explicit edges first, then
// references found in its properties.
func (g *Graph) Dependencies(id string) []string {
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}

	seen := map[string]bool{}
	var deps []string
	add := func(dep string) {
		if dep == id || seen[dep] {
			return
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	for _, dep := range node.dependsOn {
		add(dep)
	}
	for _, dep := range references(node.Properties) {
		add(dep)
	}
	return deps
}

// DependsOn reports whether from depends on to, directly or transitively.
func (g *Graph) DependsOn(from, to string) bool {
	visited := map[string]bool{}
	var walk func(id string) bool
	walk = func(id string) bool {
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, dep := range g.Dependencies(id) {
			if dep == to || walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// Validate checks that every reference points at a node in the graph.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		for _, dep := range g.Dependencies(id) {
			if _, ok := g.nodes[dep]; !ok {
				return fmt.Errorf("%w: %s referenced by %s", ErrUnknownNode, dep, id)
			}
		}
	}
	return nil
}

// Order returns the nodes so that every node comes after its dependencies. Ties keep
// insertion order.
func (g *Graph) Order() ([]*Node, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	position := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
	}

	pending := make(map[string]int, len(g.order))
	dependents := map[string][]string{}
	for _, id := range g.order {
		deps := g.Dependencies(id)
		pending[id] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for _, id := range g.order {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}

	ordered := make([]*Node, 0, len(g.order))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, g.nodes[id])
		for _, dependent := range dependents[id] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) != len(g.order) {
		var stuck []string
		for _, id := range g.order {
			if pending[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCycle, stuck)
	}
	return ordered, nil
}

// references collects the node ids referenced anywhere in a property value.
func references(value interface{}) []string {
	var ids []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch v := v.(type) {
		case Ref:
			ids = append(ids, v.Node)
		case Attr:
			ids = append(ids, v.Node)
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(v[k])
			}
		case []interface{}:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(value)
	return ids
}
