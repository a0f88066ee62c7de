/*
Package registry implements Skitter's process-wide name -> descriptor
mapping (spec.md §4.2). It is the C2 component: a single mutex-guarded map
per process, initialised once and shared by every other package that needs
to resolve a symbol to an Operation, Strategy, Workflow, or workflow
factory.

Writes are first-definition-wins: Put fails with *types.AlreadyDefined if
the name already has an entry, which is what makes concurrent
registration from independent init-time calls deterministic regardless of
call order.
*/
package registry
