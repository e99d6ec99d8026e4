package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// tensorBuffer is a reference-counted shared buffer for Copy-on-Write semantics.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

func (tb *tensorBuffer) isUnique() bool {
	return tb.refCount.Load() == 1
}

// RawTensor is the low-level tensor representation.
//
// The device field is a residency tag: data always lives in Go memory, and a
// move between devices is a copy that changes the tag. This is enough for the
// binding layer, which only has to honor placement policy, not execute kernels
// on the device.
type RawTensor struct {
	buffer *tensorBuffer // Shared reference-counted buffer
	shape  Shape         // Tensor dimensions
	stride []int         // Memory strides (row-major)
	dtype  DataType      // Runtime type information
	device Device        // Compute device
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}

	return &RawTensor{
		buffer: newTensorBuffer(shape.NumElements() * dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Zeros creates a zero-filled float32 tensor, panicking on an invalid shape.
func Zeros(shape Shape, device Device) *RawTensor {
	raw, err := NewRaw(shape, Float32, device)
	if err != nil {
		panic(err)
	}
	return raw
}

// ZerosLike creates a zero-filled tensor with the same shape, dtype and device as t.
func ZerosLike(t *RawTensor) *RawTensor {
	raw, err := NewRaw(t.shape, t.dtype, t.device)
	if err != nil {
		panic(err)
	}
	return raw
}

// FromFloat32 creates a float32 tensor holding a copy of data.
func FromFloat32(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if len(data) != shape.NumElements() {
		return nil, errors.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	raw, err := NewRaw(shape, Float32, device)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), data)
	return raw, nil
}

// MustFromFloat32 is FromFloat32 that panics on error. Mostly used by tests and the CLI.
func MustFromFloat32(data []float32, shape Shape, device Device) *RawTensor {
	raw, err := FromFloat32(data, shape, device)
	if err != nil {
		panic(err)
	}
	return raw
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.buffer.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat16 interprets the data as []float16.Float16.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []float16.Float16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&data[0])), r.NumElements())
}

// Float32s returns the values converted to float32, whatever the float dtype.
// The result never aliases the tensor storage unless the dtype is already Float32.
func (r *RawTensor) Float32s() []float32 {
	switch r.dtype {
	case Float32:
		return r.AsFloat32()
	case Float64:
		src := r.AsFloat64()
		out := make([]float32, len(src))
		for i, v := range src {
			out[i] = float32(v)
		}
		return out
	case Float16:
		src := r.AsFloat16()
		out := make([]float32, len(src))
		for i, v := range src {
			out[i] = v.Float32()
		}
		return out
	default:
		panic(fmt.Sprintf("tensor dtype %s cannot be read as float32", r.dtype))
	}
}

// Clone creates a shallow copy of the RawTensor sharing the buffer.
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Copy creates a deep copy with its own buffer on the same device.
func (r *RawTensor) Copy() *RawTensor {
	return r.copyTo(r.device)
}

func (r *RawTensor) copyTo(device Device) *RawTensor {
	buf := newTensorBuffer(len(r.buffer.data))
	copy(buf.data, r.buffer.data)
	return &RawTensor{
		buffer: buf,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: device,
	}
}

// To returns the tensor resident on device.
// If the tensor already lives there the receiver itself is returned, so moves are idempotent.
func (r *RawTensor) To(device Device) *RawTensor {
	if r.device == device {
		return r
	}
	return r.copyTo(device)
}

// Cast converts the tensor to another floating-point dtype.
// Casting to the current dtype returns the receiver.
func (r *RawTensor) Cast(dtype DataType) (*RawTensor, error) {
	if r.dtype == dtype {
		return r, nil
	}
	if !r.dtype.IsFloat() || !dtype.IsFloat() {
		return nil, errors.Errorf("cast from %s to %s is not supported", r.dtype, dtype)
	}
	out, err := NewRaw(r.shape, dtype, r.device)
	if err != nil {
		return nil, err
	}
	src := r.Float32s()
	switch dtype {
	case Float32:
		copy(out.AsFloat32(), src)
	case Float64:
		dst := out.AsFloat64()
		for i, v := range src {
			dst[i] = float64(v)
		}
	case Float16:
		dst := out.AsFloat16()
		for i, v := range src {
			dst[i] = float16.Fromfloat32(v)
		}
	}
	return out, nil
}

// CopyFrom copies the values of src into r. Shapes and dtypes must match.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if !r.shape.Equal(src.shape) {
		return errors.Errorf("shape mismatch: destination %v, source %v", r.shape, src.shape)
	}
	if r.dtype != src.dtype {
		return errors.Errorf("dtype mismatch: destination %s, source %s", r.dtype, src.dtype)
	}
	copy(r.buffer.data, src.buffer.data)
	return nil
}

// SharesStorage reports whether r and other are views of the same buffer.
func (r *RawTensor) SharesStorage(other *RawTensor) bool {
	return other != nil && r.buffer == other.buffer
}

// Release decrements the reference count and deallocates if it reaches 0.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// IsUnique returns true if this tensor is the only reference to the buffer.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.isUnique()
}

// String implements fmt.Stringer with a compact description (no values).
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(%s%v, %s)", r.dtype, []int(r.shape), r.device)
}
