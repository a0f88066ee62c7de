/*
Package deploy implements Skitter's deployment engine (spec.md §4.6): the
C6 component that turns a Workflow, possibly containing nested
sub-workflow nodes, into a live Deployment. Flatten resolves every
sub-workflow node into plain sibling nodes first; the result is then
validated and its nodes topologically sorted before each one's strategy
deploy hook runs in order.

If any deploy hook fails, already-deployed nodes are undeployed in
reverse order before the error is surfaced, so a failed deployment never
leaves partial state behind (spec.md §8 scenario 4).
*/
package deploy
