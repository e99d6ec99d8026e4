package nn

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/serialization"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Checkpoint metadata keys.
const (
	metaCheckpoint = "checkpoint"
	metaEpoch      = "epoch"
	metaStep       = "step"
	metaLoss       = "loss"
	metaLR         = "lr"
	metaCreatedAt  = "created_at"

	optimizerPrefix = "optimizer."
)

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Model state (analog weights read from the tiles, digital parameters)
//   - Optimizer state (momentum buffers, Adam moments, etc.)
//   - Training metadata (epoch, step, loss)
//
// It is stored as a SafeTensors file; optimizer tensors are prefixed with
// "optimizer." and the training metadata goes into the header metadata.
// Pending analog traces are not part of a checkpoint.
//
// Example:
//
//	checkpoint := &nn.Checkpoint{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Step:      5000,
//	    Loss:      0.123,
//	}
//	err := checkpoint.Save("checkpoint_epoch_10.safetensors")
type Checkpoint struct {
	Model     Module            // The model
	Optimizer OptimizerState    // The optimizer with its state
	Epoch     int               // Training epoch number
	Step      int64             // Training step number
	Loss      float64           // Loss value at this checkpoint
	Metadata  map[string]string // Additional training metadata
	CreatedAt time.Time         // When the checkpoint was created
}

// Save writes the checkpoint to path.
func (c *Checkpoint) Save(path string) error {
	combinedStateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Model.StateDict() {
		combinedStateDict[name] = raw
	}
	for name, raw := range c.Optimizer.StateDict() {
		combinedStateDict[optimizerPrefix+name] = raw
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	meta := make(map[string]string, len(c.Metadata)+6)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta[metaCheckpoint] = "true"
	meta[metaEpoch] = strconv.Itoa(c.Epoch)
	meta[metaStep] = strconv.FormatInt(c.Step, 10)
	meta[metaLoss] = strconv.FormatFloat(c.Loss, 'g', -1, 64)
	meta[metaLR] = strconv.FormatFloat(float64(c.Optimizer.GetLR()), 'g', -1, 32)
	meta[metaCreatedAt] = createdAt.Format(time.RFC3339Nano)

	if err := serialization.WriteSafeTensors(path, combinedStateDict, meta); err != nil {
		return errors.Wrap(err, "failed to write checkpoint")
	}
	klog.V(1).Infof("checkpoint saved to %s (epoch %d, step %d)", path, c.Epoch, c.Step)
	return nil
}

// LoadCheckpoint loads a checkpoint written by Checkpoint.Save.
//
// The model and optimizer must be pre-constructed with the same architecture
// and configuration as when the checkpoint was saved; their state is
// restored in place.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	file, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, err
	}
	if file.Metadata[metaCheckpoint] != "true" {
		return nil, errors.Errorf("%s is not a checkpoint", path)
	}

	modelStateDict := make(map[string]*tensor.RawTensor)
	optimizerStateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range file.Tensors {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerStateDict[rest] = raw
		} else {
			modelStateDict[name] = raw
		}
	}

	if err := model.LoadStateDict(modelStateDict); err != nil {
		return nil, errors.Wrap(err, "failed to load model state")
	}
	if err := optimizer.LoadStateDict(optimizerStateDict); err != nil {
		return nil, errors.Wrap(err, "failed to load optimizer state")
	}

	checkpoint := &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Metadata:  make(map[string]string),
	}
	for k, v := range file.Metadata {
		switch k {
		case metaCheckpoint, metaLR, serialization.MetaChecksum:
		case metaEpoch:
			checkpoint.Epoch, err = strconv.Atoi(v)
		case metaStep:
			checkpoint.Step, err = strconv.ParseInt(v, 10, 64)
		case metaLoss:
			checkpoint.Loss, err = strconv.ParseFloat(v, 64)
		case metaCreatedAt:
			checkpoint.CreatedAt, err = time.Parse(time.RFC3339Nano, v)
		default:
			checkpoint.Metadata[k] = v
		}
		if err != nil {
			return nil, errors.Wrapf(err, "checkpoint metadata %q", k)
		}
	}
	return checkpoint, nil
}

// SaveCheckpoint is a convenience function to save a checkpoint.
//
// Example:
//
//	err := nn.SaveCheckpoint("checkpoint.safetensors", model, optimizer, epoch)
func SaveCheckpoint(path string, model Module, optimizer OptimizerState, epoch int) error {
	checkpoint := &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     epoch,
		CreatedAt: time.Now().UTC(),
	}
	return checkpoint.Save(path)
}
