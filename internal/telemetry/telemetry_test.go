package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/netmend/internal/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	ctx := context.Background()

	tel, err := Setup(ctx, config.TelemetryConfig{Enabled: false}, "test")
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.Nil(t, tel.tracerProvider)
	assert.Nil(t, tel.meterProvider)

	assert.NoError(t, tel.Shutdown(ctx))
}

func TestShutdownNilReceiver(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
}
