package deploy

import (
	"fmt"

	"github.com/skitter-run/skitter/pkg/types"
)

// Flatten resolves every nested sub-workflow node into plain sibling nodes
// before a workflow reaches Validate or topoSort (spec.md §3, §4.6): each
// interior node of a SubWorkflow becomes a sibling of the node that wrapped
// it, with its links rewritten so the returned workflow contains no
// SubWorkflow nodes at all. Node ids are generated deterministically from
// the nesting path (qualify), so flattening is idempotent and a workflow
// with no SubWorkflow nodes anywhere passes through unchanged.
//
// An interior node reaches the sub-workflow's own boundary with the
// reserved destination Link{Node: "", Port: "<out-port>"}: spec.md names
// InPortLinks as the mechanism for routing a value arriving on a
// workflow-level in-port, but defines no equivalent for a sub-workflow's
// declared out-ports, so Flatten treats an empty Node as "emit through my
// enclosing sub-workflow's out-port" and splices in whatever the wrapping
// node's own external Links name for that port in its parent scope.
func Flatten(workflow *types.Workflow) (*types.Workflow, error) {
	if workflow == nil {
		return nil, fmt.Errorf("deploy: cannot flatten a nil workflow")
	}

	nodes, entry, err := flattenLevel(workflow.Nodes, scope{})
	if err != nil {
		return nil, err
	}

	inPortLinks, err := resolveLinks(workflow.InPortLinks, scope{}, entry)
	if err != nil {
		return nil, err
	}

	return &types.Workflow{
		InPorts:     workflow.InPorts,
		OutPorts:    workflow.OutPorts,
		Nodes:       nodes,
		InPortLinks: inPortLinks,
	}, nil
}

// scope is the nesting context link destinations are resolved in: prefix
// is the id-qualification prefix in force at the current level, and chain
// is the stack of enclosing sub-workflow wrappers (outermost first) an
// exit destination may need to be spliced through.
type scope struct {
	prefix string
	chain  []wrapper
}

// wrapper describes one sub-workflow node being flattened: id is its final
// qualified id (never present in the flattened output, since the wrapper
// node itself does not survive flattening), outPorts are the names its
// SubWorkflow declares, outLinks are the wrapper node's own external
// Links as written in its parent, and outerScope is the scope those
// outLinks must themselves be resolved in.
type wrapper struct {
	id         string
	outPorts   []string
	outLinks   map[string][]types.Link
	outerScope scope
}

// qualify derives a node id unique across nesting levels: an empty prefix
// means the top level, so top-level node ids pass through unchanged.
func qualify(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + "/" + id
}

// flattenLevel flattens one set of sibling nodes (a workflow's top-level
// Nodes, or one SubWorkflow's own Nodes) under sc, returning every plain
// node produced at this level and below, keyed by its final qualified id,
// plus an entry map resolving each sub-workflow node found directly at
// this level: for node id "sw" with in-port "p", entry["sw.p"] holds the
// destinations InPortLinks["p"] on sw's SubWorkflow resolves to, already
// qualified and exit-spliced.
//
// This happens in two passes because a plain node's own Links may target
// a sibling sub-workflow node's in-port, and Go map iteration gives no
// guarantee that sibling is visited, and therefore recursed into and
// added to entry, before the node referencing it.
func flattenLevel(levelNodes map[string]*types.Node, sc scope) (map[string]*types.Node, map[string][]types.Link, error) {
	out := make(map[string]*types.Node, len(levelNodes))
	entry := make(map[string][]types.Link, len(levelNodes))

	for id, node := range levelNodes {
		if node.SubWorkflow == nil {
			continue
		}

		qid := qualify(sc.prefix, id)
		sub := node.SubWorkflow
		w := wrapper{id: qid, outPorts: sub.OutPorts, outLinks: node.Links, outerScope: sc}
		childScope := scope{prefix: qid, chain: append(append([]wrapper{}, sc.chain...), w)}

		childNodes, childEntry, err := flattenLevel(sub.Nodes, childScope)
		if err != nil {
			return nil, nil, err
		}
		for cid, cnode := range childNodes {
			out[cid] = cnode
		}

		resolvedEntry, err := resolveLinks(sub.InPortLinks, childScope, childEntry)
		if err != nil {
			return nil, nil, fmt.Errorf("deploy: flatten node %q: %w", qid, err)
		}
		for port, dests := range resolvedEntry {
			entry[id+"."+port] = dests
		}
	}

	for id, node := range levelNodes {
		if node.SubWorkflow != nil {
			continue
		}
		qid := qualify(sc.prefix, id)
		rewritten, err := resolveLinks(node.Links, sc, entry)
		if err != nil {
			return nil, nil, fmt.Errorf("deploy: flatten node %q: %w", qid, err)
		}
		out[qid] = &types.Node{
			ID:        qid,
			Operation: node.Operation,
			Args:      node.Args,
			Strategy:  node.Strategy,
			Links:     rewritten,
		}
	}

	return out, entry, nil
}

// resolveLinks rewrites every destination of a port->destinations map
// (a node's own Links, or an InPortLinks map) within sc, resolving
// sub-workflow references against entry.
func resolveLinks(links map[string][]types.Link, sc scope, entry map[string][]types.Link) (map[string][]types.Link, error) {
	if len(links) == 0 {
		return nil, nil
	}
	out := make(map[string][]types.Link, len(links))
	for port, dests := range links {
		resolved, err := resolveDests(dests, sc, entry)
		if err != nil {
			return nil, err
		}
		out[port] = resolved
	}
	return out, nil
}

func resolveDests(dests []types.Link, sc scope, entry map[string][]types.Link) ([]types.Link, error) {
	var resolved []types.Link
	for _, d := range dests {
		rs, err := resolveDest(d, sc, entry)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, rs...)
	}
	return resolved, nil
}

// resolveDest rewrites one link destination found at sc's level. A
// destination naming a sibling sub-workflow node's in-port (recorded in
// entry as "<id>.<port>") is replaced by that sub-workflow's own resolved
// interior destinations. A destination with an empty Node is an exit: it
// names one of the innermost enclosing sub-workflow's declared out-ports,
// and is replaced by whatever that sub-workflow's own wrapper node names
// for that port in its parent, resolved in the wrapper's own outer scope
// (so an exit spliced into another exit keeps unwinding outward). Any
// other destination is a plain node reference and is qualified with sc's
// prefix.
func resolveDest(d types.Link, sc scope, entry map[string][]types.Link) ([]types.Link, error) {
	if rs, ok := entry[d.Node+"."+d.Port]; ok {
		return rs, nil
	}

	if d.Node == "" {
		if len(sc.chain) == 0 {
			return nil, fmt.Errorf("link exits through out-port %q with no enclosing sub-workflow", d.Port)
		}
		innermost := sc.chain[len(sc.chain)-1]
		if !containsString(innermost.outPorts, d.Port) {
			return nil, fmt.Errorf("sub-workflow %q declares no out-port %q", innermost.id, d.Port)
		}
		return resolveDests(innermost.outLinks[d.Port], innermost.outerScope, nil)
	}

	return []types.Link{{Node: qualify(sc.prefix, d.Node), Port: d.Port}}, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
