// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor type used by analog models.
//
// # Overview
//
// RawTensor is a dense, row-major tensor with a dtype and a device tag. The
// device tag records where the data lives; moving a tensor with To copies it
// unless it is already there.
//
// # Basic Usage
//
//	import "github.com/Zhaoxian-Wu/aihwkit/tensor"
//
//	x := tensor.MustFromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
//	y := x.To(tensor.WebGPU) // copy on the accelerator
//	h, _ := y.Cast(tensor.Float16)
package tensor

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32(), AsFloat16(), etc.
//   - Device moves via To() and dtype conversion via Cast()
//   - Reference counting for shared buffers via Clone()
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Device represents the compute device a tensor resides on.
type Device = tensor.Device

// Data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Float16 = tensor.Float16
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
)

// Devices.
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Zeros creates a zero-filled float32 tensor.
func Zeros(shape Shape, device Device) *RawTensor {
	return tensor.Zeros(shape, device)
}

// FromFloat32 creates a float32 tensor holding a copy of data.
func FromFloat32(data []float32, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromFloat32(data, shape, device)
}

// MustFromFloat32 is FromFloat32 that panics on error.
func MustFromFloat32(data []float32, shape Shape, device Device) *RawTensor {
	return tensor.MustFromFloat32(data, shape, device)
}

// ParseDevice parses a device name such as "cpu" or "webgpu".
func ParseDevice(name string) (Device, bool) {
	return tensor.ParseDevice(name)
}
