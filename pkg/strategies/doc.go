/*
Package strategies provides Skitter's built-in distribution strategies:
NewReplica (stateless, round-robin fan-out across N workers), NewKeyed
(state partitioned by a hash of a per-message key across N workers) and
NewSingleton (exactly one worker for the node).

Every strategy here shares one process hook: invoke the node's "react"
callback (arity 1) with the delivered message, apply its returned state
and emits. Only deploy (how many workers, and how they're addressed) and
deliver (which worker a given message goes to) differ between them.
*/
package strategies
