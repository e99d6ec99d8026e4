package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// File is the decoded content of a SafeTensors file.
type File struct {
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadSafeTensors reads a SafeTensors file from path into host tensors.
func ReadSafeTensors(path string) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = f.Close() }()

	file, err := ReadFrom(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return file, nil
}

// ReadFrom decodes SafeTensors data from r.
//
// The header is validated (names, dtypes, offsets) before any tensor is
// built, and the data section is checked against the MetaChecksum metadata
// when present.
func ReadFrom(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, errors.Wrapf(ErrInvalidHeader, "reading header size: %v", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, errors.Wrapf(ErrInvalidHeader, "reading header: %v", err)
	}
	metas, metadata, err := parseHeader(headerJSON)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading tensor data")
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, err
	}
	if stored, ok := metadata[MetaChecksum]; ok {
		sum, err := parseChecksum(stored)
		if err != nil {
			return nil, err
		}
		if err := ValidateChecksum(ComputeChecksum(data), sum); err != nil {
			return nil, err
		}
	}

	tensors := make(map[string]*tensor.RawTensor, len(metas))
	for _, m := range metas {
		raw, err := tensor.NewRaw(m.Shape, m.DType, tensor.CPU)
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %q", m.Name)
		}
		copy(raw.Data(), data[m.Offset:m.Offset+m.Size])
		tensors[m.Name] = raw
	}
	return &File{Tensors: tensors, Metadata: metadata}, nil
}

func parseHeader(headerJSON []byte) ([]TensorMeta, map[string]string, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &entries); err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidHeader, "parsing header: %v", err)
	}
	if len(entries) > MaxTensorCount+1 {
		return nil, nil, &ValidationError{Type: "too_many_tensors", Details: "header has too many entries"}
	}

	metadata := map[string]string{}
	metas := make([]TensorMeta, 0, len(entries))
	for name, entry := range entries {
		if name == metadataKey {
			if err := json.Unmarshal(entry, &metadata); err != nil {
				return nil, nil, errors.Wrapf(ErrInvalidHeader, "parsing metadata: %v", err)
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}

		var h SafeTensorHeader
		if err := json.Unmarshal(entry, &h); err != nil {
			return nil, nil, errors.Wrapf(ErrInvalidHeader, "tensor %q: %v", name, err)
		}
		dtype, ok := safeTensorsToDtype(h.DType)
		if !ok {
			return nil, nil, errors.Wrapf(ErrUnsupportedDType, "tensor %q has dtype %q", name, h.DType)
		}
		shape := make(tensor.Shape, len(h.Shape))
		for i, dim := range h.Shape {
			if dim < 0 {
				return nil, nil, errors.Wrapf(ErrInvalidHeader, "tensor %q has negative dimension", name)
			}
			shape[i] = int(dim)
		}

		m := TensorMeta{
			Name:   name,
			DType:  dtype,
			Shape:  shape,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		}
		if want := int64(shape.NumElements() * dtype.Size()); m.Size != want {
			return nil, nil, &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: "data offsets do not match shape and dtype",
			}
		}
		metas = append(metas, m)
	}
	return metas, metadata, nil
}
