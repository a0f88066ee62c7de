/*
Package types defines the core descriptor model used throughout Skitter.

This package contains the immutable records that describe a workflow before
it is deployed: operations, strategies, workflows, nodes and links, plus the
runtime records a deployment produces (worker handles, frozen deployment
data, and per-call context). These types carry no behaviour besides
constructors and accessors; they are shared by value between the master and
worker processes during deployment.

# Core Types

Descriptor model:
  - Operation: ports, initial state, callbacks
  - Callback: a named function plus static read/write/emit flags
  - Strategy: named hooks (deploy/deliver/process/...)
  - Workflow: nodes, links, in/out ports
  - Node: one occurrence of an operation inside a workflow, with its args,
    strategy and links

Runtime records:
  - WorkerHandle: a stable, cluster-addressable reference to a worker actor
  - Deployment: the frozen node-id -> deployment-data map produced by deploy
    hooks
  - Context: the per-hook-call bundle exposing component/args/deployment/
    invocation
  - Invocation: the correlation token propagated from a source through emits

# Validation

Workflow validation (spec §3) is checked once, before deployment, by
Workflow.Validate: every link destination must reference an existing node
and in-port, every link source out-port must be valid for its node, every
workflow in-port must be connected, and no node id may be reused.
*/
package types
