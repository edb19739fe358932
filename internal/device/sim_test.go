package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimSessionScriptedResponses(t *testing.T) {
	s := NewSimSession("R4")
	s.Respond("show version", "Cisco IOS Software")

	res, err := s.Execute(context.Background(), "show version", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "Cisco IOS Software", res.Output)
	assert.Equal(t, []string{"show version"}, s.Transcript())
}

func TestSimSessionEffectsAndSnapshot(t *testing.T) {
	s := NewSimSession("R4")
	s.SetState("Gi0/1.admin", "down")
	s.OnCommand("no shutdown", map[string]string{"Gi0/1.admin": "up"})
	s.OnCommandClear("shutdown", "Gi0/1.admin")

	before := s.Snapshot()

	_, err := s.Execute(context.Background(), "no shutdown", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "up", s.Snapshot()["Gi0/1.admin"])

	_, err = s.Execute(context.Background(), "shutdown", time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, before, s.Snapshot())
	_, ok := s.Snapshot()["Gi0/1.admin"]
	assert.False(t, ok)
}

func TestSimSessionFailureInjection(t *testing.T) {
	s := NewSimSession("R4")
	s.FailTimes("no shutdown", 1)

	res, err := s.Execute(context.Background(), "no shutdown", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	res, err = s.Execute(context.Background(), "no shutdown", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 2, s.Count("no shutdown"))
}

func TestSimSessionTimeoutInjection(t *testing.T) {
	s := NewSimSession("R4")
	s.TimeoutOn("clear ip ospf process")

	res, err := s.Execute(context.Background(), "clear ip ospf process", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, res.Status)
}

func TestSimSessionCancelledContext(t *testing.T) {
	s := NewSimSession("R4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Execute(ctx, "show version", time.Second)
	assert.Error(t, err)
	assert.Empty(t, s.Transcript())
}

func TestPacedSessionForwards(t *testing.T) {
	inner := NewSimSession("R4")
	inner.Respond("show clock", "10:00:00")
	paced := NewPacedSession(inner, 100, 1)

	res, err := paced.Execute(context.Background(), "show clock", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "10:00:00", res.Output)
	assert.Equal(t, "R4", paced.Device())
	assert.True(t, paced.IsReachable(context.Background()))
}
