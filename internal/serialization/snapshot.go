package serialization

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Metadata keys written with snapshots.
const (
	MetaFormat     = "format"
	SnapshotFormat = "analog-snapshot"
)

// SaveSnapshots writes analog weight snapshots to a SafeTensors file, one
// tensor per name. Snapshots are written from host memory.
func SaveSnapshots(path string, snaps map[string]*analog.Snapshot, metadata map[string]string) error {
	tensors := make(map[string]*tensor.RawTensor, len(snaps))
	for name, snap := range snaps {
		if snap == nil || snap.Weights() == nil {
			return errors.Errorf("snapshot %q is empty", name)
		}
		tensors[name] = snap.Weights().To(tensor.CPU)
	}

	meta := map[string]string{MetaFormat: SnapshotFormat}
	for k, v := range metadata {
		meta[k] = v
	}
	if err := WriteSafeTensors(path, tensors, meta); err != nil {
		return errors.Wrapf(err, "saving snapshots to %s", path)
	}

	if info, err := os.Stat(path); err == nil {
		klog.V(1).Infof("saved %d analog snapshots to %s (%s)", len(snaps), path, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

// LoadSnapshots reads snapshots written by SaveSnapshots. The returned
// snapshots are unbound; attach them to tiles with analog.AttachContext.
func LoadSnapshots(path string) (map[string]*analog.Snapshot, map[string]string, error) {
	file, err := ReadSafeTensors(path)
	if err != nil {
		return nil, nil, err
	}
	if format := file.Metadata[MetaFormat]; format != SnapshotFormat {
		return nil, nil, errors.Wrapf(ErrInvalidHeader, "%s holds %q, not analog snapshots", path, format)
	}

	snaps := make(map[string]*analog.Snapshot, len(file.Tensors))
	for name, raw := range file.Tensors {
		if !raw.DType().IsFloat() {
			return nil, nil, errors.Wrapf(ErrUnsupportedDType, "snapshot %q has dtype %s", name, raw.DType())
		}
		snaps[name] = analog.NewSnapshot(raw)
	}
	klog.V(1).Infof("loaded %d analog snapshots from %s", len(snaps), path)
	return snaps, file.Metadata, nil
}
