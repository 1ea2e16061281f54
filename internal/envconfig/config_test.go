package envconfig

import (
	"testing"

	"github.com/born-ml/chronosynth/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Setenv("CHRONOSYNTH_DEBUG", "")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("CHRONOSYNTH_DEBUG", "false")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("CHRONOSYNTH_DEBUG", "1")
	LoadConfig()
	require.True(t, Debug)
	t.Setenv("CHRONOSYNTH_DEBUG", "yes please")
	LoadConfig()
	require.True(t, Debug)
}

func TestParallelSettings(t *testing.T) {
	def := parallel.DefaultConfig()

	cases := map[string]struct {
		threads, chunk string
		workers, min   int
	}{
		"defaults": {"", "", def.NumWorkers, def.MinChunkSize},
		"explicit": {"3", "16", 3, 16},
		"quoted":   {"\"2\"", "' 8 '", 2, 8},
		"invalid":  {"zero", "-4", def.NumWorkers, def.MinChunkSize},
		"zero":     {"0", "0", def.NumWorkers, def.MinChunkSize},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CHRONOSYNTH_NUM_THREADS", tc.threads)
			t.Setenv("CHRONOSYNTH_MIN_CHUNK", tc.chunk)
			LoadConfig()

			cfg := ParallelConfig()
			assert.Equal(t, tc.workers, cfg.NumWorkers)
			assert.Equal(t, tc.min, cfg.MinChunkSize)
			assert.Equal(t, tc.workers > 1, cfg.Enabled)
		})
	}
}

func TestSingleThreadDisablesParallelism(t *testing.T) {
	t.Setenv("CHRONOSYNTH_NUM_THREADS", "1")
	LoadConfig()

	assert.False(t, ParallelConfig().Enabled)
}

func TestBackend(t *testing.T) {
	cases := map[string]string{
		"":         BackendCPU,
		"cpu":      BackendCPU,
		"WebGPU":   BackendWebGPU,
		"'webgpu'": BackendWebGPU,
		"cuda":     BackendCPU,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("CHRONOSYNTH_BACKEND", value)
			LoadConfig()
			assert.Equal(t, expect, Backend)
		})
	}
}

func TestAsMap(t *testing.T) {
	t.Setenv("CHRONOSYNTH_NUM_THREADS", "5")
	LoadConfig()

	m := AsMap()
	require.Contains(t, m, "CHRONOSYNTH_NUM_THREADS")
	assert.Equal(t, 5, m["CHRONOSYNTH_NUM_THREADS"].Value)
	for key, v := range m {
		assert.Equal(t, key, v.Name)
		assert.NotEmpty(t, v.Description)
	}
	assert.Equal(t, "5", Values()["CHRONOSYNTH_NUM_THREADS"])
}
