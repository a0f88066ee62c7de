/*
Package log provides structured logging for Skitter using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support
filtering by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Skitter packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: Add component name to all logs (e.g. "router", "deploy")
  - WithNodeID: Add workflow node ID context
  - WithWorkerID: Add worker handle ID context
  - WithInvocation: Add invocation ID context, for tracing one message's
    path across deploy, deliver, and process hooks

# Usage

Initializing the Logger:

	import "github.com/skitter-run/skitter/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("cluster initialized")
	log.Debug("checking node status")
	log.Warn("worker mailbox depth over soft limit")
	log.Error("failed to deliver to remote worker")
	log.Fatal("cannot start without a workflow") // exits process

Context Logger Helpers:

	deployLog := log.WithComponent("deploy")
	deployLog.Info().Msg("starting deployment")

	workerLog := log.WithWorkerID("w-abc123")
	workerLog.Error().Err(err).Msg("process hook crashed")

	invLog := log.WithInvocation(string(ctx.Invocation)).
		With().Str("node_id", ctx.NodeID).Logger()
	invLog.Debug().Msg("delivered message")

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance, initialized once at startup,
    accessible from all packages without passing it down explicitly.

Context Logger Pattern:
  - Child loggers carry fixed fields (component, node ID, worker ID,
    invocation) so call sites don't repeat them on every log line.

Structured Logging Pattern:
  - Typed fields (.Str, .Int, .Err) instead of string concatenation, so
    logs stay parseable by log aggregation tools.

# Security

Never log secrets or sensitive data (join tokens, TLS keys). Use
structured fields for user-supplied values rather than concatenating
them into the message string, to avoid log injection.
*/
package log
