// Package main trains a small analog regression model and reports what the
// tiles did.
//
// Usage:
//
//	aihwkit -steps 200 -mode deferred -optimizer sgd
//	aihwkit -mode direct -device webgpu -offload-input -checkpoint run.safetensors
//	aihwkit version
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff"
	"github.com/Zhaoxian-Wu/aihwkit/internal/nn"
	"github.com/Zhaoxian-Wu/aihwkit/internal/optim"
	"github.com/Zhaoxian-Wu/aihwkit/internal/serialization"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tile"
)

const version = "v0.1.0-dev"

var (
	flagSteps           = flag.Int("steps", 200, "Number of training steps")
	flagBatch           = flag.Int("batch", 16, "Batch size")
	flagInFeatures      = flag.Int("in", 4, "Number of input features")
	flagHidden          = flag.Int("hidden", 8, "Hidden layer width")
	flagMode            = flag.String("mode", "deferred", "Analog update mode: deferred or direct")
	flagOptimizer       = flag.String("optimizer", "sgd", "Digital optimizer: sgd or adam")
	flagLR              = flag.Float64("lr", 0.05, "Learning rate")
	flagDevice          = flag.String("device", "cpu", "Device to train on (cpu, webgpu)")
	flagOffloadInput    = flag.Bool("offload-input", false, "Keep saved forward inputs in host memory")
	flagOffloadGradient = flag.Bool("offload-gradient", false, "Keep deferred error traces in host memory")
	flagSeed            = flag.Uint64("seed", 42, "Seed for data and weight initialization")
	flagCheckpoint      = flag.String("checkpoint", "", "Write a checkpoint to this path after training")
	flagSnapshot        = flag.String("snapshot", "", "Write the analog weight snapshots to this path after training")
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 && flag.Arg(0) == "version" {
		fmt.Printf("aihwkit %s\n", version)
		return
	}

	direct := false
	switch *flagMode {
	case "deferred":
	case "direct":
		direct = true
	default:
		klog.Exitf("unknown -mode %q: want deferred or direct", *flagMode)
	}
	device, ok := tensor.ParseDevice(*flagDevice)
	if !ok {
		klog.Exitf("unknown -device %q", *flagDevice)
	}

	model := buildModel(direct)
	if device != tensor.CPU {
		if err := model.To(device); err != nil {
			klog.Warningf("staying on %s: %v", tensor.CPU, err)
			device = tensor.CPU
		}
	}
	optimizer := buildOptimizer(model)

	start := time.Now()
	losses := train(model, optimizer, device)
	elapsed := time.Since(start)

	if *flagSnapshot != "" {
		must.M(saveSnapshots(*flagSnapshot, model))
	}
	if *flagCheckpoint != "" {
		must.M(nn.SaveCheckpoint(*flagCheckpoint, model, optimizer, *flagSteps))
	}
	report(model, optimizer, device, losses, elapsed)
}

// buildModel creates in -> hidden -> 1 with analog linear layers.
func buildModel(direct bool) *nn.Sequential {
	layer := func(in, out int, seed uint64) *nn.AnalogLinear {
		cfg := tile.DefaultConfig()
		cfg.LR = float32(*flagLR)
		cfg.Seed = seed
		cfg.Runtime = analog.RuntimeConfig{
			OffloadInput:    *flagOffloadInput,
			OffloadGradient: *flagOffloadGradient,
		}
		return must.M1(nn.NewAnalogLinear(in, out, nn.AnalogLinearConfig{
			Bias:   true,
			Direct: direct,
			Tile:   cfg,
		}))
	}
	return nn.NewSequential(
		layer(*flagInFeatures, *flagHidden, *flagSeed),
		nn.NewReLU(),
		layer(*flagHidden, 1, *flagSeed+1),
	)
}

func buildOptimizer(model *nn.Sequential) *optim.AnalogSGD {
	lr := float32(*flagLR)
	var digital optim.Optimizer
	switch *flagOptimizer {
	case "sgd":
		digital = optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: lr})
	case "adam":
		digital = optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: lr})
	default:
		klog.Exitf("unknown -optimizer %q: want sgd or adam", *flagOptimizer)
	}
	return optim.NewAnalogSGD(model, digital, optim.AnalogSGDConfig{LR: lr})
}

// train fits y = sum_i c_i x_i on random batches and returns the loss of
// every step.
func train(model *nn.Sequential, optimizer *optim.AnalogSGD, device tensor.Device) []float32 {
	rng := rand.New(rand.NewPCG(*flagSeed, *flagSeed^0x5eed))
	in, batch := *flagInFeatures, *flagBatch
	coeffs := make([]float32, in)
	for i := range coeffs {
		coeffs[i] = float32(rng.NormFloat64()) * 0.5
	}

	lossFn := nn.NewMSELoss()
	tape := autodiff.NewGradientTape()
	losses := make([]float32, 0, *flagSteps)

	bar := progressbar.NewOptions(*flagSteps,
		progressbar.OptionSetDescription("training"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
	for range *flagSteps {
		xs := make([]float32, batch*in)
		ys := make([]float32, batch)
		for b := range batch {
			for i := range in {
				v := float32(rng.Float64()*2 - 1)
				xs[b*in+i] = v
				ys[b] += coeffs[i] * v
			}
		}
		x := tensor.MustFromFloat32(xs, tensor.Shape{batch, in}, tensor.CPU).To(device)
		y := tensor.MustFromFloat32(ys, tensor.Shape{batch, 1}, tensor.CPU).To(device)

		tape.StartRecording()
		loss := lossFn.Forward(tape, model.Forward(tape, x), y)
		grads := autodiff.Backward(tape, loss)
		tape.StopRecording()

		optimizer.Step(grads)
		optimizer.ZeroGrad()

		l := loss.AsFloat32()[0]
		losses = append(losses, l)
		bar.Describe(fmt.Sprintf("training loss=%.4f", l))
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return losses
}

func saveSnapshots(path string, model *nn.Sequential) error {
	snaps := make(map[string]*analog.Snapshot)
	for i := range model.Len() {
		if l, ok := model.Module(i).(*nn.AnalogLinear); ok {
			snaps[fmt.Sprintf("%d.weight", i)] = l.Snapshot()
		}
	}
	return serialization.SaveSnapshots(path, snaps, map[string]string{
		"mode":    *flagMode,
		"steps":   fmt.Sprint(*flagSteps),
		"version": version,
	})
}

// report prints a summary table of the run and the tiles.
func report(model *nn.Sequential, optimizer *optim.AnalogSGD, device tensor.Device, losses []float32, elapsed time.Duration) {
	stats := optimizer.Stats()
	rows := [][]string{
		{"Device", device.String()},
		{"Mode", *flagMode},
		{"Steps", humanize.Comma(int64(len(losses)))},
		{"Elapsed", elapsed.Round(time.Millisecond).String()},
		{"Tile updates", humanize.Comma(stats.TileUpdates)},
		{"Trace pairs", humanize.Comma(stats.ConsumedPairs)},
	}
	if len(losses) > 0 {
		rows = append(rows,
			[]string{"First loss", fmt.Sprintf("%.5f", losses[0])},
			[]string{"Final loss", fmt.Sprintf("%.5f", losses[len(losses)-1])})
	}
	for i := range model.Len() {
		l, ok := model.Module(i).(*nn.AnalogLinear)
		if !ok {
			continue
		}
		ts := l.Tile().Stats()
		rows = append(rows, []string{
			fmt.Sprintf("Layer %d", i),
			fmt.Sprintf("%s pulses, %s clipped, %s weights",
				humanize.Comma(ts.Pulses), humanize.Comma(ts.Clipped),
				humanize.Bytes(uint64(l.Tile().Weights().ByteSize()))),
		})
	}

	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		}).
		Rows(rows...)
	fmt.Fprintln(os.Stdout, table.Render())
}
