package flow

import "strings"

// Graph is the insertion-ordered DAG of every Node and Link created while
// setting up a flow, shared across all flows in one session (Flux). Go
// maps have no deterministic iteration order (unlike the Python dicts the
// original relies on for insertion order), so order is tracked explicitly
// alongside each map. Mirrors flowfish.graph.Graph.
type Graph struct {
	nodeOrder []*Node
	nodes     map[*Node]bool
	outgoing  map[*Node][]*Link
	incoming  map[*Node][]*Link
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[*Node]bool),
		outgoing: make(map[*Node][]*Link),
		incoming: make(map[*Node][]*Link),
	}
}

// AddNode registers a node, a no-op if already present.
func (g *Graph) AddNode(n *Node) {
	if !g.nodes[n] {
		g.nodes[n] = true
		g.nodeOrder = append(g.nodeOrder, n)
	}
}

// AddLink registers a directed link between two distinct nodes, returning a
// *RecursionError for a self-reference (source == target).
func (g *Graph) AddLink(l *Link) error {
	if l.Source == l.Target {
		return newRecursionError("link failed: %s (self reference)", l)
	}
	g.AddNode(l.Source)
	g.outgoing[l.Source] = append(g.outgoing[l.Source], l)
	g.AddNode(l.Target)
	g.incoming[l.Target] = append(g.incoming[l.Target], l)
	return nil
}

// Direction selects which adjacency a Tree traversal follows.
type Direction int

const (
	// Both traverses upstream and downstream.
	Both Direction = 0
	// Downstream traverses from a node to its outgoing links (dependents).
	Downstream Direction = 1
	// Upstream traverses from a node to its incoming links (dependencies).
	Upstream Direction = -1
)

// UntilDone decides, for a given node, whether the traversal should stop
// expanding from it.
type UntilDone func(*Node) bool

// Tree performs a directed traversal from node (or from every root node
// when node is nil), collecting reached nodes and traversed links in
// insertion order. until_done may be nil (never stop early). omitInternal
// skips links whose param is a metadata (underscore) name. Mirrors
// flowfish.graph.Graph.tree/_tree, including its readable cycle-detection
// message.
func (g *Graph) Tree(node *Node, direction Direction, untilDone UntilDone, omitInternal bool) ([]*Node, []*Link, error) {
	nodes := make(map[*Node]bool)
	nodeOrder := []*Node{}
	links := make(map[*Link]bool)
	linkOrder := []*Link{}
	err := g.walkTree(node, direction, untilDone, omitInternal, nodes, &nodeOrder, links, &linkOrder, nil)
	return nodeOrder, linkOrder, err
}

func (g *Graph) walkTree(
	node *Node, direction Direction, untilDone UntilDone, omitInternal bool,
	nodes map[*Node]bool, nodeOrder *[]*Node,
	links map[*Link]bool, linkOrder *[]*Link,
	branch []*Node,
) error {
	if node == nil {
		if direction == Both || direction == Downstream {
			for _, n := range g.nodeOrder {
				if len(g.incoming[n]) == 0 {
					if err := g.walkTree(n, direction, untilDone, omitInternal, nodes, nodeOrder, links, linkOrder, branch); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if !nodes[node] {
		nodes[node] = true
		*nodeOrder = append(*nodeOrder, node)
	}

	done := false
	if untilDone != nil {
		done = untilDone(node)
	}
	if done {
		return nil
	}

	if direction == Both || direction == Downstream {
		next := append(append([]*Node{}, branch...), node)
		for _, l := range g.outgoing[node] {
			if omitInternal && l.Internal() {
				continue
			}
			target := l.Target
			if containsNode(next, target) {
				return newRecursionError("loop detected: %s", describeLoop(next, target, true))
			}
			if !links[l] {
				links[l] = true
				*linkOrder = append(*linkOrder, l)
			}
			if err := g.walkTree(target, Downstream, untilDone, omitInternal, nodes, nodeOrder, links, linkOrder, next); err != nil {
				return err
			}
		}
	}
	if direction == Both || direction == Upstream {
		prev := append(append([]*Node{}, branch...), node)
		for _, l := range g.incoming[node] {
			if omitInternal && l.Internal() {
				continue
			}
			source := l.Source
			if containsNode(prev, source) {
				return newRecursionError("loop detected: %s", describeLoop(prev, source, false))
			}
			if !links[l] {
				links[l] = true
				*linkOrder = append(*linkOrder, l)
			}
			if err := g.walkTree(source, Upstream, untilDone, omitInternal, nodes, nodeOrder, links, linkOrder, prev); err != nil {
				return err
			}
		}
	}
	return nil
}

func containsNode(ns []*Node, n *Node) bool {
	for _, v := range ns {
		if v == n {
			return true
		}
	}
	return false
}

func describeLoop(branch []*Node, repeated *Node, forward bool) string {
	all := append(append([]*Node{}, branch...), repeated)
	parts := make([]string, len(all))
	for i, n := range all {
		label := n.Repr()
		if n == repeated {
			label = "{" + label + "}"
		}
		parts[i] = label
	}
	if !forward {
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
	}
	sep := " -> "
	if !forward {
		sep = " <- "
	}
	return strings.Join(parts, sep)
}
