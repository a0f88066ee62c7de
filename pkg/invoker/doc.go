/*
Package invoker implements Skitter's callback invoker (spec.md §4.3): the
pure function that runs one operation callback given (state, config, args)
and returns its result triple. It is the C3 component.

The invoker never blocks, never suspends, and never schedules work: it is
a straight dispatch-by-name-and-arity lookup in Operation.Callbacks to
the matching callback's function value.
*/
package invoker
