package flow

import (
	"errors"
	"fmt"
)

// nodeSpec is the resolved definition of one node after Build.
type nodeSpec struct {
	name    string
	handler Handler
	gate    *Gate
	edge    string  // fixed successor, "" when routed
	router  *Router // conditional successor, nil when edged
	slots   map[string]bool
}

// Graph is an immutable workflow definition: named nodes, one entry
// (fixed or routed), and a successor for every node. Build validates the
// whole structure, so a Graph in hand is safe to execute. Graphs carry no
// mutable state and may be shared by any number of engines and threads.
type Graph struct {
	nodes       map[string]*nodeSpec
	entry       string
	entryRouter *Router
	slotOwners  map[string]string
}

// NodeOption configures a node at AddNode time.
type NodeOption func(*nodeSpec)

// OwnsSlot declares the node as the sole writer of the named slot.
// Deltas from any other node touching that slot are rejected whole at
// apply time. A node may own several slots; a slot has at most one
// owner.
func OwnsSlot(name string) NodeOption {
	return func(n *nodeSpec) {
		n.slots[name] = true
	}
}

// Builder accumulates a graph definition. Methods record errors instead
// of failing fast; Build reports everything at once.
type Builder struct {
	nodes       []*nodeSpec
	edges       map[string]string
	routers     map[string]Router
	entry       string
	entryRouter *Router
	errs        []error
}

// NewBuilder returns an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		edges:   make(map[string]string),
		routers: make(map[string]Router),
	}
}

// AddNode registers a handler node.
func (b *Builder) AddNode(name string, h Handler, opts ...NodeOption) *Builder {
	if name == "" {
		b.errs = append(b.errs, errors.New("node name must not be empty"))
		return b
	}
	if h == nil {
		b.errs = append(b.errs, fmt.Errorf("node %q has a nil handler", name))
		return b
	}
	n := &nodeSpec{name: name, handler: h, slots: make(map[string]bool)}
	for _, opt := range opts {
		opt(n)
	}
	b.nodes = append(b.nodes, n)
	return b
}

// AddGate registers a human-in-the-loop node. Reaching it suspends the
// run until Resume supplies input.
func (b *Builder) AddGate(name string, g Gate) *Builder {
	if name == "" {
		b.errs = append(b.errs, errors.New("gate name must not be empty"))
		return b
	}
	if g.Apply == nil {
		b.errs = append(b.errs, fmt.Errorf("gate %q has no Apply function", name))
		return b
	}
	gate := g
	b.nodes = append(b.nodes, &nodeSpec{name: name, gate: &gate, slots: make(map[string]bool)})
	return b
}

// SetEntry fixes the first node of every run.
func (b *Builder) SetEntry(name string) *Builder {
	b.entry = name
	return b
}

// SetEntryRouter chooses the first node per run from the initial state.
func (b *Builder) SetEntryRouter(r Router) *Builder {
	b.entryRouter = &r
	return b
}

// AddEdge wires a fixed successor. to may be End.
func (b *Builder) AddEdge(from, to string) *Builder {
	if _, dup := b.edges[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an edge", from))
		return b
	}
	b.edges[from] = to
	return b
}

// AddRouter wires a conditional successor. Table values may be End.
func (b *Builder) AddRouter(from string, r Router) *Builder {
	if _, dup := b.routers[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q already has a router", from))
		return b
	}
	b.routers[from] = r
	return b
}

// Build validates the accumulated definition and returns the immutable
// graph. A node with neither an edge nor a router gets an implicit edge
// to End.
func (b *Builder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)

	nodes := make(map[string]*nodeSpec, len(b.nodes))
	slotOwners := make(map[string]string)
	for _, n := range b.nodes {
		if _, dup := nodes[n.name]; dup {
			errs = append(errs, fmt.Errorf("duplicate node %q", n.name))
			continue
		}
		if n.name == End || n.name == startNode {
			errs = append(errs, fmt.Errorf("node name %q is reserved", n.name))
			continue
		}
		nodes[n.name] = n
		for slot := range n.slots {
			if owner, taken := slotOwners[slot]; taken {
				errs = append(errs, fmt.Errorf("slot %q owned by both %q and %q", slot, owner, n.name))
				continue
			}
			slotOwners[slot] = n.name
		}
	}

	resolve := func(from, to string) {
		if to == End {
			return
		}
		if _, ok := nodes[to]; !ok {
			errs = append(errs, fmt.Errorf("edge from %q targets unknown node %q", from, to))
		}
	}
	for from, to := range b.edges {
		if _, ok := nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if _, routed := b.routers[from]; routed {
			errs = append(errs, fmt.Errorf("node %q has both an edge and a router", from))
		}
		resolve(from, to)
	}
	for from, r := range b.routers {
		if _, ok := nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("router from unknown node %q", from))
		}
		if r.Route == nil {
			errs = append(errs, fmt.Errorf("router at %q has no Route function", from))
		}
		if len(r.Table) == 0 {
			errs = append(errs, fmt.Errorf("router at %q has an empty table", from))
		}
		for label, to := range r.Table {
			if to == End {
				continue
			}
			if _, ok := nodes[to]; !ok {
				errs = append(errs, fmt.Errorf("router at %q maps label %q to unknown node %q", from, label, to))
			}
		}
	}

	switch {
	case b.entry == "" && b.entryRouter == nil:
		errs = append(errs, errors.New("no entry point: call SetEntry or SetEntryRouter"))
	case b.entry != "" && b.entryRouter != nil:
		errs = append(errs, errors.New("both SetEntry and SetEntryRouter configured"))
	case b.entry != "":
		if _, ok := nodes[b.entry]; !ok {
			errs = append(errs, fmt.Errorf("entry node %q not found", b.entry))
		}
	case b.entryRouter != nil:
		for label, to := range b.entryRouter.Table {
			if to == End {
				continue
			}
			if _, ok := nodes[to]; !ok {
				errs = append(errs, fmt.Errorf("entry router maps label %q to unknown node %q", label, to))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := &Graph{
		nodes:       nodes,
		entry:       b.entry,
		entryRouter: b.entryRouter,
		slotOwners:  slotOwners,
	}
	for _, n := range g.nodes {
		if to, ok := b.edges[n.name]; ok {
			n.edge = to
			continue
		}
		if r, ok := b.routers[n.name]; ok {
			router := r
			n.router = &router
			continue
		}
		n.edge = End
	}
	return g, nil
}

// next resolves the successor of from given the current state. from may
// be startNode, which resolves the entry.
func (g *Graph) next(from string, s State) (string, error) {
	if from == startNode {
		if g.entryRouter != nil {
			return g.entryRouter.Next(s, startNode)
		}
		return g.entry, nil
	}
	n, ok := g.nodes[from]
	if !ok {
		return "", &RoutingError{From: from, Label: from}
	}
	if n.router != nil {
		return n.router.Next(s, from)
	}
	return n.edge, nil
}

// node looks up a node by name.
func (g *Graph) node(name string) (*nodeSpec, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// SlotOwner reports which node owns a slot, if any.
func (g *Graph) SlotOwner(slot string) (string, bool) {
	owner, ok := g.slotOwners[slot]
	return owner, ok
}
