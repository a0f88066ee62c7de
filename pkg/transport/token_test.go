package transport_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/transport"
)

func TestTokenManagerValidateRoundTrip(t *testing.T) {
	tm := transport.NewTokenManager()
	jt, err := tm.Generate(transport.RoleWorker, time.Minute)
	require.NoError(t, err)

	role, err := tm.Validate(jt.Token)
	require.NoError(t, err)
	require.Equal(t, transport.RoleWorker, role)
}

func TestTokenManagerRejectsUnknownToken(t *testing.T) {
	tm := transport.NewTokenManager()
	_, err := tm.Validate("nope")
	require.Error(t, err)
}

func TestTokenManagerRejectsExpiredToken(t *testing.T) {
	tm := transport.NewTokenManager()
	jt, err := tm.Generate(transport.RoleMaster, -time.Second)
	require.NoError(t, err)

	_, err = tm.Validate(jt.Token)
	require.Error(t, err)
}

func TestTokenManagerRevoke(t *testing.T) {
	tm := transport.NewTokenManager()
	jt, err := tm.Generate(transport.RoleWorker, time.Minute)
	require.NoError(t, err)

	tm.Revoke(jt.Token)
	_, err = tm.Validate(jt.Token)
	require.Error(t, err)
}
