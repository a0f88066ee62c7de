package ha

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

const (
	opDeploy   = "deploy"
	opUndeploy = "undeploy"
)

// Command is a single replicated operation against the HA cluster's
// Raft log. WorkflowName names a workflow in the shared pkg/registry;
// the workflow's actual graph never crosses the wire, since its
// Operations carry Go func values that cannot survive JSON encoding.
// Every cluster member is expected to have the same named workflow
// already registered locally, the same way a worker must already host
// every Operation a master asks it to run.
type Command struct {
	Op           string `json:"op"`
	WorkflowName string `json:"workflow_name"`
}

// State is the FSM's replicated view of what the master tier should
// currently have deployed: just enough for a freshly elected leader to
// know which named workflow to redeploy. Worker placement (node id ->
// WorkerHandle) is deliberately not part of this state: a WorkerHandle
// is tied to the gRPC connection a specific master process opened, so a
// new leader reconnects to the configured workers and redeploys from
// scratch rather than inheriting another process's live handles.
type State struct {
	WorkflowName string `json:"workflow_name"`
	Deployed     bool   `json:"deployed"`
}

// FSM implements raft.FSM over a single State value.
type FSM struct {
	mu    sync.RWMutex
	state State
}

func newFSM() *FSM {
	return &FSM{}
}

// Apply applies one committed Raft log entry to the state.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("ha: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opDeploy:
		f.state = State{WorkflowName: cmd.WorkflowName, Deployed: true}
	case opUndeploy:
		f.state = State{}
	default:
		return fmt.Errorf("ha: unknown command %q", cmd.Op)
	}
	return nil
}

// State returns a copy of the FSM's current replicated state.
func (f *FSM) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Snapshot captures the current state for Raft's log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{state: f.State()}, nil
}

// Restore replaces the FSM's state from a previously captured snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var s State
	if err := json.NewDecoder(rc).Decode(&s); err != nil {
		return fmt.Errorf("ha: decode snapshot: %w", err)
	}
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	return nil
}

type fsmSnapshot struct {
	state State
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.state); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
