package tile

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// SetIndexTable installs the column table used by the indexed routines.
// Entry j names the input column feeding tile column j; -1 feeds zero
// (padding). The table must have one entry per tile input column.
func (t *SimulatorTile) SetIndexTable(index []int) error {
	in := t.weights.Shape()[1]
	if len(index) != in {
		return errors.Errorf("index table has %d entries, tile has %d input columns", len(index), in)
	}
	for j, idx := range index {
		if idx < -1 {
			return errors.Errorf("index table entry %d is %d, want >= -1", j, idx)
		}
	}
	t.index = append([]int(nil), index...)
	return nil
}

// IndexTable returns a copy of the column table, or nil if none is set.
func (t *SimulatorTile) IndexTable() []int {
	if t.index == nil {
		return nil
	}
	return append([]int(nil), t.index...)
}

func (t *SimulatorTile) requireIndex(op string) []int {
	if t.index == nil {
		exceptions.Panicf("%s on %s: no index table set", op, t.BriefInfo())
	}
	return t.index
}

// WindowIndex builds an index table reading width consecutive columns
// starting at offset, with columns past limit padded.
func WindowIndex(width, offset, limit int) []int {
	index := make([]int, width)
	for j := range index {
		col := offset + j
		if col < 0 || col >= limit {
			col = -1
		}
		index[j] = col
	}
	return index
}
