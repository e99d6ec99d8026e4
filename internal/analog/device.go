package analog

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Device moves change the context and its tile together. Each move first
// computes everything that can fail (tile migration, conversions), then
// commits the new data and finishes with Reset(newTile), so a failed move
// leaves the binding untouched. Moves to where the tile already is are
// no-ops and leave the trace alone.

// ToAccelerator re-reads the weights from the tile, migrates the tile to
// device and rebinds. It is a no-op if the tile is already on an accelerator.
func (c *Context) ToAccelerator(device tensor.Device) error {
	if !device.IsAccelerator() {
		return errors.Wrapf(ErrUnsupportedMove, "%s is not an accelerator device", device)
	}
	if c.tile.IsOnAccelerator() {
		return nil
	}

	weights := c.tile.Weights()
	moved, err := c.tile.ToAccelerator(device)
	if err != nil {
		return errors.Wrapf(err, "moving %s to %s", c.tile.BriefInfo(), device)
	}

	c.data = weights.To(moved.Device())
	c.Reset(moved)
	klog.V(1).Infof("analog context moved to %s", moved.Device())
	return nil
}

// ToHost moves the context data to host memory and, if the tile is on an
// accelerator, migrates the tile to the host and rebinds.
func (c *Context) ToHost() error {
	if !c.tile.IsOnAccelerator() {
		c.data = c.data.To(tensor.CPU)
		return nil
	}

	moved, err := c.tile.ToHost()
	if err != nil {
		return errors.Wrapf(err, "moving %s to host", c.tile.BriefInfo())
	}

	c.data = c.data.To(tensor.CPU)
	c.Reset(moved)
	klog.V(1).Infof("analog context moved to host")
	return nil
}

// To moves the context to device and optionally converts its weight data to dtype.
//
// Dtype conversion applies to the context's weight data only: tiles keep
// their own precision and ignore it. Converting while moving an
// accelerator-resident tile back to the host is not supported.
func (c *Context) To(device tensor.Device, dtype ...tensor.DataType) error {
	if len(dtype) > 1 {
		return errors.Errorf("analog context To: at most one dtype, got %d", len(dtype))
	}
	target := c.data.DType()
	if len(dtype) == 1 {
		target = dtype[0]
	}

	convert := target != c.data.DType()
	if convert {
		if !target.IsFloat() || !c.data.DType().IsFloat() {
			return errors.Wrapf(ErrUnsupportedMove, "cannot convert analog weights from %s to %s",
				c.data.DType(), target)
		}
		if !device.IsAccelerator() && c.tile.IsOnAccelerator() {
			return errors.Wrapf(ErrUnsupportedMove, "cannot move %s from %s to host as %s",
				c.tile.BriefInfo(), c.tile.Device(), target)
		}
	}

	var err error
	if device.IsAccelerator() {
		err = c.ToAccelerator(device)
	} else {
		err = c.ToHost()
	}
	if err != nil {
		return err
	}

	if convert {
		converted, err := c.data.Cast(target)
		if err != nil {
			return errors.WithStack(err)
		}
		c.data = converted
		klog.Warningf("dtype %s applied to the context data only, %s ignores it", target, c.tile.BriefInfo())
	}
	return nil
}
