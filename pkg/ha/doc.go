// Package ha replicates, via Raft, which named workflow the master tier
// of a Skitter cluster currently has deployed, so that when the leading
// master process dies, its replacement knows what to redeploy without an
// operator re-running `deploy` by hand. This is an optional extension:
// spec.md's core master/worker model runs perfectly well as a single
// master with no pkg/ha involved at all.
package ha
