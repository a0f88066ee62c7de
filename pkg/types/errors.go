package types

import "fmt"

// ValidationError is raised when a workflow references an unknown port,
// node, or strategy, detected at workflow construction (spec.md §7).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }

// DeployError is raised when a strategy's deploy hook fails. NodeID names
// the node whose hook failed; Err is the hook's underlying error.
type DeployError struct {
	NodeID string
	Err    error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy error: node %q: %v", e.NodeID, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }

// RemoteError is a transport-level failure: node unreachable, mode
// mismatch, or duplicate connection (spec.md §7).
type RemoteError struct {
	Addr   string
	Reason string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %s: %s", e.Addr, e.Reason)
}

// WorkerCrash records that a process activation raised; the worker's
// handle becomes dead (spec.md §7).
type WorkerCrash struct {
	Handle WorkerHandle
	Err    error
}

func (e *WorkerCrash) Error() string {
	return fmt.Sprintf("worker crash: %s: %v", e.Handle.ID, e.Err)
}

func (e *WorkerCrash) Unwrap() error { return e.Err }

// DeliveryError records a message sent to a dead worker or unknown node;
// it is logged and counted, never fatal (spec.md §7).
type DeliveryError struct {
	Handle WorkerHandle
	Reason string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error: %s: %s", e.Handle.ID, e.Reason)
}

// UnknownCallback is raised by the invoker when a named callback does not
// exist on an operation (spec.md §4.3).
type UnknownCallback struct {
	Operation string
	Name      string
	Arity     int
}

func (e *UnknownCallback) Error() string {
	return fmt.Sprintf("unknown callback %s/%d on operation %q", e.Name, e.Arity, e.Operation)
}

// AlreadyDefined is raised by the registry when a name is put twice
// (spec.md §4.2).
type AlreadyDefined struct {
	Name string
}

func (e *AlreadyDefined) Error() string {
	return fmt.Sprintf("already defined: %s", e.Name)
}

// NotFound is raised by the registry when a name has no entry.
type NotFound struct {
	Name string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("not found: %s", e.Name)
}
