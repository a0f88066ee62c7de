/*
Package ops provides Skitter's built-in operations: Map, FlatMap, Filter,
Count and Print transform/sink bodies, plus StreamSource, a callback-free
operation whose values a driver pushes in directly through its node's Ops
(the zero-in-port case spec.md §3 calls out: "such a node only receives
messages that its strategy sends to its own workers").

Every transform here is a thin constructor around a single "react"
callback (spec.md §4.3's (name, arity) dispatch), the named-dispatch shape
pkg/invoker resolves for any operation.
*/
package ops
