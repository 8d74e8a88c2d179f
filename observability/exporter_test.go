package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConsoleMetricsExporter(t *testing.T) {
	shutdown, err := NewConsoleMetricsExporter(10*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestNewPrometheusMetricsExporter(t *testing.T) {
	shutdown, err := NewPrometheusMetricsExporter()
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}
