package supervisor_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/supervisor"
	"github.com/skitter-run/skitter/pkg/transport"
)

// freeAddr reserves and releases an ephemeral port so a supervisor under
// test can bind to a known, mostly-stable address.
func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestWorkerRunStopsOnContextCancel(t *testing.T) {
	addr := freeAddr(t)
	w := supervisor.NewWorker(supervisor.WorkerConfig{NodeID: addr})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var code supervisor.ExitCode
	var runErr error
	go func() {
		code, runErr = w.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
	require.NoError(t, runErr)
	require.Equal(t, supervisor.ExitNormal, code)
}

func TestMasterFailsFastOnUnreachableWorker(t *testing.T) {
	m := supervisor.NewMaster(supervisor.MasterConfig{
		Addr:    freeAddr(t),
		Workers: []string{"127.0.0.1:1"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code, err := m.Run(ctx)
	require.Error(t, err)
	require.Equal(t, supervisor.ExitNormal, code)
}

func TestMasterShutdownWithWorkersOnDisconnect(t *testing.T) {
	workerAddr := freeAddr(t)
	worker := supervisor.NewWorker(supervisor.WorkerConfig{NodeID: workerAddr})

	masterToken, err := worker.IssueToken(transport.RoleMaster)
	require.NoError(t, err)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		worker.Run(workerCtx)
		close(workerDone)
	}()
	time.Sleep(50 * time.Millisecond) // let the worker's listener come up

	master := supervisor.NewMaster(supervisor.MasterConfig{
		Addr:                freeAddr(t),
		Workers:             []string{workerAddr},
		ShutdownWithWorkers: true,
		Token:               masterToken.Token,
	})

	masterCtx, cancelMaster := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelMaster()

	masterDone := make(chan struct{})
	var code supervisor.ExitCode
	var runErr error
	go func() {
		code, runErr = master.Run(masterCtx)
		close(masterDone)
	}()

	time.Sleep(100 * time.Millisecond) // let master connect to the worker
	stopWorker()

	select {
	case <-workerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	select {
	case <-masterDone:
	case <-time.After(5 * time.Second):
		t.Fatal("master did not notice worker disconnect")
	}
	require.NoError(t, runErr)
	require.Equal(t, supervisor.ExitPeerDisconnected, code)
}
