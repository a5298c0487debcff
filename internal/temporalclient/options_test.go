package temporalclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientOptions_EnvThenOverrides(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "env-host:7233")
	t.Setenv("TEMPORAL_NAMESPACE", "env-ns")
	t.Setenv("TEMPORAL_CONFIG_FILE", "")

	opts, err := LoadClientOptions(Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "env-host:7233", opts.HostPort)
	assert.Equal(t, "env-ns", opts.Namespace)

	opts, err = LoadClientOptions(Overrides{HostPort: "cfg-host:7233"})
	require.NoError(t, err)
	assert.Equal(t, "cfg-host:7233", opts.HostPort)
	assert.Equal(t, "env-ns", opts.Namespace)
}
