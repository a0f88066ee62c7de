package supervisor

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ExitCode is the process exit code a supervisor's Run returns, matching
// spec.md §6's documented values.
type ExitCode int

const (
	// ExitNormal is returned after a clean shutdown: an OS signal, or an
	// explicit Stop call.
	ExitNormal ExitCode = 0
	// ExitPeerDisconnected is returned when the configured shutdown
	// policy (shutdown_with_master / shutdown_with_workers) terminated
	// the process because a peer it depends on went away.
	ExitPeerDisconnected ExitCode = 4
)

// DefaultFailureDetectionTimeout is how long a peer may go without a
// heartbeat before pkg/transport.Membership declares it down, bounding
// how quickly a shutdown_with_master/shutdown_with_workers termination
// fires (spec.md §8 scenario 6: "every worker terminates within the
// failure-detection window").
const DefaultFailureDetectionTimeout = 15 * time.Second

// DefaultMembershipSweepInterval is how often Membership checks for
// timed-out peers.
const DefaultMembershipSweepInterval = 5 * time.Second

// tokenTTL is how long a join token issued by a Master supervisor stays
// valid.
const tokenTTL = 24 * time.Hour

// shutdownSignal returns a channel that fires once on SIGINT or SIGTERM,
// shared by every long-running mode supervisor.
func shutdownSignal() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
