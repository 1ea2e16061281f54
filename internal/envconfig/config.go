package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/chronosynth/internal/parallel"
)

// Backend names accepted by CHRONOSYNTH_BACKEND.
const (
	BackendCPU    = "cpu"
	BackendWebGPU = "webgpu"
)

var (
	// Set via CHRONOSYNTH_DEBUG in the environment
	Debug bool
	// Set via CHRONOSYNTH_NUM_THREADS in the environment
	NumThreads int
	// Set via CHRONOSYNTH_MIN_CHUNK in the environment
	MinChunk int
	// Set via CHRONOSYNTH_BACKEND in the environment
	Backend string
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CHRONOSYNTH_DEBUG":       {"CHRONOSYNTH_DEBUG", Debug, "Show additional debug information (e.g. CHRONOSYNTH_DEBUG=1)"},
		"CHRONOSYNTH_NUM_THREADS": {"CHRONOSYNTH_NUM_THREADS", NumThreads, "Worker goroutines per kernel launch (default: number of CPUs)"},
		"CHRONOSYNTH_MIN_CHUNK":   {"CHRONOSYNTH_MIN_CHUNK", MinChunk, "Smallest number of elements handed to one worker (default 64)"},
		"CHRONOSYNTH_BACKEND":     {"CHRONOSYNTH_BACKEND", Backend, "Compute backend, cpu or webgpu (default cpu)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

// LoadConfig resets every setting to its default and applies the
// environment. Invalid values are logged and ignored.
func LoadConfig() {
	def := parallel.DefaultConfig()
	Debug = false
	NumThreads = def.NumWorkers
	MinChunk = def.MinChunkSize
	Backend = BackendCPU

	if debug := clean("CHRONOSYNTH_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	if n := clean("CHRONOSYNTH_NUM_THREADS"); n != "" {
		val, err := strconv.Atoi(n)
		if err != nil || val <= 0 {
			slog.Error("invalid setting must be greater than zero", "CHRONOSYNTH_NUM_THREADS", n, "error", err)
		} else {
			NumThreads = val
		}
	}

	if n := clean("CHRONOSYNTH_MIN_CHUNK"); n != "" {
		val, err := strconv.Atoi(n)
		if err != nil || val <= 0 {
			slog.Error("invalid setting must be greater than zero", "CHRONOSYNTH_MIN_CHUNK", n, "error", err)
		} else {
			MinChunk = val
		}
	}

	if b := strings.ToLower(clean("CHRONOSYNTH_BACKEND")); b != "" {
		switch b {
		case BackendCPU, BackendWebGPU:
			Backend = b
		default:
			slog.Error("invalid setting, using cpu", "CHRONOSYNTH_BACKEND", b)
		}
	}
}

// ParallelConfig returns the CPU execution config described by the
// environment.
func ParallelConfig() parallel.Config {
	return parallel.Config{
		Enabled:      NumThreads > 1,
		NumWorkers:   NumThreads,
		MinChunkSize: MinChunk,
	}
}
