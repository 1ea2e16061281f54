package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/chronosynth/autodiff"
	"github.com/born-ml/chronosynth/backend/cpu"
	"github.com/born-ml/chronosynth/backend/webgpu"
	"github.com/born-ml/chronosynth/internal/envconfig"
	"github.com/born-ml/chronosynth/internal/serialization"
	"github.com/born-ml/chronosynth/synth"
	"github.com/born-ml/chronosynth/tensor"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Tensor names read and written by forward and backward.
const (
	nameInput      = "input"
	nameWeight     = "weight"
	nameRowOffset  = "offset_row"
	nameColOffset  = "offset_col"
	nameOutput     = "output"
	nameGradOutput = "grad_output"
	nameGradWeight = "grad_weight"
)

func configureLogging(w io.Writer) {
	level := slog.LevelInfo
	if envconfig.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// newBackend returns the backend named by CHRONOSYNTH_BACKEND and a release
// func. A WebGPU request falls back to the CPU when no device is usable.
func newBackend() (tensor.Backend, func()) {
	if envconfig.Backend == envconfig.BackendWebGPU {
		gpu, err := webgpu.New()
		if err == nil {
			slog.Debug("using webgpu backend")
			return gpu, gpu.Release
		}
		slog.Warn("webgpu backend unavailable, falling back to cpu", "error", err)
	}

	cfg := envconfig.ParallelConfig()
	slog.Debug("using cpu backend", "workers", cfg.NumWorkers, "min_chunk", cfg.MinChunkSize)
	return cpu.NewWithConfig(cfg), func() {}
}

func loadTensors(path string, names ...string) (map[string]*tensor.RawTensor, error) {
	r, err := serialization.OpenMmap(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := r.Verify(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ts := make(map[string]*tensor.RawTensor, len(names))
	for _, name := range names {
		t, err := r.Load(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ts[name] = t
	}
	return ts, nil
}

// padInput replicates the border of input by ((K-1)*D)/2, with K taken from
// the weight depth.
func padInput(b tensor.Backend, input, weight *tensor.RawTensor, dilation int) (*tensor.RawTensor, error) {
	if len(input.Shape()) != 4 || len(weight.Shape()) != 4 {
		return nil, fmt.Errorf("%w: input %v, weight %v", synth.ErrRank, input.Shape(), weight.Shape())
	}
	if dilation < 1 {
		return nil, fmt.Errorf("%w: got %d", synth.ErrDilation, dilation)
	}
	k, err := synth.KernelSize(weight.Shape()[1])
	if err != nil {
		return nil, err
	}
	return b.PadReplicate(input, synth.PadFor(k, dilation)), nil
}

func writeResult(cmd *cobra.Command, name string, t *tensor.RawTensor, b tensor.Backend, dilation int) error {
	out, _ := cmd.Flags().GetString("out")
	dtypeName, _ := cmd.Flags().GetString("dtype")

	dtype := serialization.DType(strings.ToUpper(dtypeName))
	switch dtype {
	case serialization.F32, serialization.F16, serialization.BF16:
	default:
		return fmt.Errorf("unsupported --dtype %q: want f32, f16 or bf16", dtypeName)
	}

	metadata := map[string]string{
		"dilation": strconv.Itoa(dilation),
		"backend":  b.Name(),
	}
	if err := serialization.Write(out, map[string]*tensor.RawTensor{name: t}, metadata, serialization.WriteOptions{DType: dtype}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s %v to %s\n", name, t.Shape(), out)
	return nil
}

func ForwardHandler(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	dilation, _ := cmd.Flags().GetInt("dilation")
	pad, _ := cmd.Flags().GetBool("pad")

	ts, err := loadTensors(in, nameInput, nameWeight, nameRowOffset, nameColOffset)
	if err != nil {
		return err
	}

	b, release := newBackend()
	defer release()

	input := ts[nameInput]
	if pad {
		if input, err = padInput(b, input, ts[nameWeight], dilation); err != nil {
			return err
		}
	}

	start := time.Now()
	output, err := synth.Forward(b, input, ts[nameWeight], ts[nameRowOffset], ts[nameColOffset], dilation)
	if err != nil {
		return err
	}
	slog.Debug("forward", "backend", b.Name(), "input", input.Shape(), "output", output.Shape(), "elapsed", time.Since(start))

	return writeResult(cmd, nameOutput, output, b, dilation)
}

func BackwardHandler(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	dilation, _ := cmd.Flags().GetInt("dilation")
	pad, _ := cmd.Flags().GetBool("pad")

	ts, err := loadTensors(in, nameGradOutput, nameInput, nameRowOffset, nameColOffset)
	if err != nil {
		return err
	}

	b, release := newBackend()
	defer release()

	input := ts[nameInput]
	if pad {
		// the offsets carry the weight's shape
		if input, err = padInput(b, input, ts[nameRowOffset], dilation); err != nil {
			return err
		}
	}

	start := time.Now()
	grad, err := synth.BackwardWeight(b, ts[nameGradOutput], input, ts[nameRowOffset], ts[nameColOffset], dilation)
	if err != nil {
		return err
	}
	slog.Debug("backward", "backend", b.Name(), "grad_weight", grad.Shape(), "elapsed", time.Since(start))

	return writeResult(cmd, nameGradWeight, grad, b, dilation)
}

type gradcheckOptions struct {
	kernel, dilation, size, channels, batch int
	samples                                 int
	seed                                    int64
	eps, tol                                float64
}

func GradcheckHandler(cmd *cobra.Command, args []string) error {
	var opts gradcheckOptions
	opts.kernel, _ = cmd.Flags().GetInt("kernel")
	opts.dilation, _ = cmd.Flags().GetInt("dilation")
	opts.size, _ = cmd.Flags().GetInt("size")
	opts.channels, _ = cmd.Flags().GetInt("channels")
	opts.batch, _ = cmd.Flags().GetInt("batch")
	opts.samples, _ = cmd.Flags().GetInt("samples")
	opts.seed, _ = cmd.Flags().GetInt64("seed")
	opts.eps, _ = cmd.Flags().GetFloat64("eps")
	opts.tol, _ = cmd.Flags().GetFloat64("tol")

	b, release := newBackend()
	defer release()

	worst, checked, err := gradcheck(b, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checked %d weights on %s: max error %.3g (tolerance %.3g)\n",
		checked, b.Name(), worst, opts.tol)
	if worst > opts.tol {
		return fmt.Errorf("gradient check failed: max error %.3g exceeds %.3g", worst, opts.tol)
	}
	return nil
}

// gradcheck compares the recorded weight gradient of L = <g, Synth(w)>
// against central differences and returns the largest gradError.
func gradcheck(b tensor.Backend, opts gradcheckOptions) (float64, int, error) {
	if opts.size < 1 || opts.channels < 1 || opts.batch < 1 {
		return 0, 0, errors.New("size, channels and batch must be positive")
	}
	if opts.eps <= 0 {
		return 0, 0, fmt.Errorf("eps must be positive, got %g", opts.eps)
	}
	if opts.kernel < 1 {
		return 0, 0, fmt.Errorf("%w: kernel %d", synth.ErrKernelSize, opts.kernel)
	}
	if opts.dilation < 1 {
		return 0, 0, fmt.Errorf("%w: got %d", synth.ErrDilation, opts.dilation)
	}

	rng := rand.New(rand.NewSource(opts.seed))
	taps := opts.kernel * opts.kernel
	pad := synth.PadFor(opts.kernel, opts.dilation)
	inSize := opts.size + 2*pad

	random := func(shape tensor.Shape, lo, hi float32) (*tensor.RawTensor, error) {
		data := make([]float32, shape.NumElements())
		for i := range data {
			data[i] = lo + rng.Float32()*(hi-lo)
		}
		return tensor.FromFloat32(shape, data, tensor.CPU)
	}

	tapShape := tensor.Shape{opts.batch, taps, opts.size, opts.size}
	input, err := random(tensor.Shape{opts.batch, opts.channels, inSize, inSize}, 0, 1)
	if err != nil {
		return 0, 0, err
	}
	weight, err := random(tapShape, -1, 1)
	if err != nil {
		return 0, 0, err
	}
	row, err := random(tapShape, -1.5, 1.5)
	if err != nil {
		return 0, 0, err
	}
	col, err := random(tapShape, -1.5, 1.5)
	if err != nil {
		return 0, 0, err
	}
	gradOut, err := random(tensor.Shape{opts.batch, opts.channels, opts.size, opts.size}, -1, 1)
	if err != nil {
		return 0, 0, err
	}

	recorder := autodiff.New(b)
	recorder.Tape().StartRecording()
	out, err := synth.Forward(recorder, input, weight, row, col, opts.dilation)
	if err != nil {
		return 0, 0, err
	}
	analytic := autodiff.BackwardWithGrad(out, gradOut, recorder)[weight].AsFloat32()

	loss := func() (float64, error) {
		out, err := synth.Forward(b, input, weight, row, col, opts.dilation)
		if err != nil {
			return 0, err
		}
		var l float64
		for i, v := range out.AsFloat32() {
			l += float64(v) * float64(gradOut.AsFloat32()[i])
		}
		return l, nil
	}

	indices := rng.Perm(weight.NumElements())
	if opts.samples > 0 && opts.samples < len(indices) {
		indices = indices[:opts.samples]
	}
	slices.Sort(indices)

	w := weight.AsFloat32()
	eps := float32(opts.eps)
	var worst float64
	for _, idx := range indices {
		orig := w[idx]

		w[idx] = orig + eps
		plus, err := loss()
		if err != nil {
			return 0, 0, err
		}
		w[idx] = orig - eps
		minus, err := loss()
		if err != nil {
			return 0, 0, err
		}
		w[idx] = orig

		numeric := (plus - minus) / (2 * float64(eps))
		a := float64(analytic[idx])
		rel := gradError(a, numeric)
		if rel > worst {
			worst = rel
			slog.Debug("gradcheck", "weight", idx, "analytic", a, "numeric", numeric, "error", rel)
		}
	}
	return worst, len(indices), nil
}

// gradError is the difference between two gradients, absolute when both
// are below 1 and relative to the larger magnitude above it.
func gradError(analytic, numeric float64) float64 {
	scale := math.Max(1, math.Max(math.Abs(analytic), math.Abs(numeric)))
	return math.Abs(analytic-numeric) / scale
}

func EnvHandler(cmd *cobra.Command, args []string) error {
	vars := envconfig.AsMap()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var data [][]string
	for _, k := range keys {
		v := vars[k]
		data = append(data, []string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "chronosynth version %s\n", version)
}

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chronosynth",
		Short: "Per-pixel synthesis for video frame interpolation",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			envconfig.LoadConfig()
			configureLogging(cmd.ErrOrStderr())
		},
		Run: func(cmd *cobra.Command, args []string) {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	cobra.EnableCommandSorting = false

	forwardCmd := &cobra.Command{
		Use:   "forward",
		Short: "Synthesize an output frame from a tensor file",
		Long: `Reads the tensors input, weight, offset_row and offset_col from --in,
runs per-pixel synthesis and writes the tensor output to --out.`,
		Args: cobra.NoArgs,
		RunE: ForwardHandler,
	}

	backwardCmd := &cobra.Command{
		Use:   "backward",
		Short: "Compute the kernel weight gradient from a tensor file",
		Long: `Reads the tensors grad_output, input, offset_row and offset_col from --in
and writes the tensor grad_weight to --out.`,
		Args: cobra.NoArgs,
		RunE: BackwardHandler,
	}

	for _, cmd := range []*cobra.Command{forwardCmd, backwardCmd} {
		cmd.Flags().String("in", "", "SafeTensors file to read")
		cmd.Flags().String("out", "", "SafeTensors file to write")
		cmd.Flags().IntP("dilation", "d", 1, "Distance between kernel taps")
		cmd.Flags().Bool("pad", false, "Replication pad the input so the output matches its size")
		cmd.Flags().String("dtype", "f32", "Stored result precision: f32, f16 or bf16")
		_ = cmd.MarkFlagRequired("in")
		_ = cmd.MarkFlagRequired("out")
	}

	gradcheckCmd := &cobra.Command{
		Use:   "gradcheck",
		Short: "Check the weight gradient against finite differences",
		Args:  cobra.NoArgs,
		RunE:  GradcheckHandler,
	}
	gradcheckCmd.Flags().IntP("kernel", "k", 3, "Kernel size K")
	gradcheckCmd.Flags().IntP("dilation", "d", 1, "Distance between kernel taps")
	gradcheckCmd.Flags().Int("size", 8, "Output height and width")
	gradcheckCmd.Flags().Int("channels", 3, "Frame channels")
	gradcheckCmd.Flags().Int("batch", 1, "Batch size")
	gradcheckCmd.Flags().Int("samples", 64, "Weights to perturb (0 for all)")
	gradcheckCmd.Flags().Int64("seed", 1, "Random seed")
	gradcheckCmd.Flags().Float64("eps", 0.05, "Finite difference step")
	gradcheckCmd.Flags().Float64("tol", 1e-3, "Maximum error, relative to max(1, |gradient|)")

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Print configuration environment variables",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run:   versionHandler,
	}

	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["CHRONOSYNTH_BACKEND"], envVars["CHRONOSYNTH_NUM_THREADS"], envVars["CHRONOSYNTH_MIN_CHUNK"], envVars["CHRONOSYNTH_DEBUG"]}
	for _, cmd := range []*cobra.Command{forwardCmd, backwardCmd, gradcheckCmd} {
		appendEnvDocs(cmd, envs)
	}

	rootCmd.AddCommand(
		forwardCmd,
		backwardCmd,
		gradcheckCmd,
		envCmd,
		versionCmd,
	)

	return rootCmd
}
