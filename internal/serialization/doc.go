// Package serialization saves and loads weight tensors in the SafeTensors
// format.
//
//	Format Structure:
//	  [8 bytes: header size N (uint64 LE)]
//	  [N bytes: JSON header, one entry per tensor plus "__metadata__"]
//	  [tensor data: raw little-endian bytes, tensors in name order]
//
// Files written here carry the SHA-256 of the data section in the metadata
// under "sha256"; readers verify it when present. Analog weight snapshots
// are stored as plain tensors, one per layer, and are re-attached to tiles
// after loading.
//
// Example usage:
//
//	snaps := map[string]*analog.Snapshot{"0.weight": layer.Snapshot()}
//	if err := serialization.SaveSnapshots("model.safetensors", snaps, nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	snaps, meta, err := serialization.LoadSnapshots("model.safetensors")
package serialization
