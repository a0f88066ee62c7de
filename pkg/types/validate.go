package types

import "fmt"

// Validate checks the invariants spec.md §3 requires before deployment:
// every link destination references an existing node and in-port, every
// link source out-port is valid for its node, every workflow in-port is
// connected to at least one destination, and node ids are unique (which
// holds trivially here since Nodes is a map). Validate expects workflow to
// already be flattened (pkg/deploy.Flatten); a node with no Operation set,
// whether a lingering SubWorkflow or simply malformed, fails validation
// rather than reaching a strategy's deploy hook with no operator behind it.
//
// A node with a nil Strategy and an Operation whose DefaultStrategy is
// also nil fails validation (spec.md §8, "a node whose operation defines
// no default strategy and whose workflow specifies none must fail
// validation").
func (w *Workflow) Validate() error {
	for id, node := range w.Nodes {
		if node.Operation == nil {
			return &ValidationError{Reason: fmt.Sprintf("node %q has no operation (unflattened sub-workflow?)", id)}
		}
		if node.Strategy == nil && node.Operation.DefaultStrategy == nil {
			return &ValidationError{Reason: fmt.Sprintf("node %q has no strategy and its operation defines no default strategy", id)}
		}
		effective := node.Strategy
		if effective == nil {
			effective = node.Operation.DefaultStrategy
		}
		if missing := effective.MissingHooks(); len(missing) > 0 {
			return &ValidationError{Reason: fmt.Sprintf("node %q strategy is missing required hooks: %v", id, missing)}
		}

		for port, dests := range node.Links {
			if port != "" && !node.Operation.HasOutPort(port) {
				return &ValidationError{Reason: fmt.Sprintf("node %q links from unknown out-port %q", id, port)}
			}
			for _, dest := range dests {
				target, ok := w.Nodes[dest.Node]
				if !ok {
					return &ValidationError{Reason: fmt.Sprintf("node %q links to unknown node %q", id, dest.Node)}
				}
				if target.Operation != nil && !target.Operation.HasInPort(dest.Port) {
					return &ValidationError{Reason: fmt.Sprintf("node %q links to unknown in-port %q on node %q", id, dest.Port, dest.Node)}
				}
			}
		}
	}

	if cyclePath := w.findCycle(); cyclePath != "" {
		return &ValidationError{Reason: fmt.Sprintf("workflow graph has a cycle: %s", cyclePath)}
	}

	for _, inPort := range w.InPorts {
		dests := w.InPortLinks[inPort]
		if len(dests) == 0 {
			return &ValidationError{Reason: fmt.Sprintf("workflow in-port %q has no destination", inPort)}
		}
		for _, dest := range dests {
			target, ok := w.Nodes[dest.Node]
			if !ok {
				return &ValidationError{Reason: fmt.Sprintf("workflow in-port %q links to unknown node %q", inPort, dest.Node)}
			}
			if target.Operation != nil && !target.Operation.HasInPort(dest.Port) {
				return &ValidationError{Reason: fmt.Sprintf("workflow in-port %q links to unknown in-port %q on node %q", inPort, dest.Port, dest.Node)}
			}
		}
	}

	return nil
}

// findCycle returns a human-readable description of the first cycle
// found in the node-to-node link graph, or "" if the graph is acyclic.
// Topological deploy order (spec.md §4.6) requires this graph be a DAG.
func (w *Workflow) findCycle() string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(w.Nodes))
	var stack []string

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case done:
			return ""
		case visiting:
			stack = append(stack, id)
			return fmt.Sprintf("%v", stack)
		}

		state[id] = visiting
		stack = append(stack, id)

		node := w.Nodes[id]
		for _, dests := range node.Links {
			for _, dest := range dests {
				if _, ok := w.Nodes[dest.Node]; !ok {
					continue
				}
				if cyc := visit(dest.Node); cyc != "" {
					return cyc
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return ""
	}

	for id := range w.Nodes {
		if state[id] == unvisited {
			if cyc := visit(id); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}

// EffectiveStrategy returns the node's own strategy, falling back to its
// operation's default strategy.
func (n *Node) EffectiveStrategy() *Strategy {
	if n.Strategy != nil {
		return n.Strategy
	}
	if n.Operation != nil {
		return n.Operation.DefaultStrategy
	}
	return nil
}
