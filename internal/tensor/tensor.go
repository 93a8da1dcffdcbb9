package tensor

import "fmt"

// Tensor is a generic tensor with element type T and backend B.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](tensor.Shape{3, 4}, backend)
//	data := t.Data() // []float32, zero-copy view
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New creates a Tensor from a RawTensor and backend.
// Panics if the raw dtype does not match T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	if dt := inferDataType[T](); raw.DType() != dt {
		panic(fmt.Sprintf("tensor.New: raw dtype %s does not match %s", raw.DType(), dt))
	}
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, inferDataType[T](), b.Device())
	if err != nil {
		return nil, err
	}

	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Zeros creates a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, inferDataType[T](), b.Device())
	if err != nil {
		panic(fmt.Sprintf("tensor.Zeros: %v", err))
	}
	return New[T, B](raw, b)
}

// Full creates a tensor with every element set to value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[T, B]) DType() DataType {
	return t.raw.DType()
}

// Device returns the tensor's compute device.
func (t *Tensor[T, B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[T, B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[T, B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[T, B]) Backend() B {
	return t.backend
}

// Data returns a typed slice view of the tensor's data.
// The slice directly accesses the underlying memory (zero-copy).
func (t *Tensor[T, B]) Data() []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case float64:
		return any(t.raw.AsFloat64()).([]T)
	case int32:
		return any(t.raw.AsInt32()).([]T)
	case int64:
		return any(t.raw.AsInt64()).([]T)
	case uint8:
		return any(t.raw.AsUint8()).([]T)
	default:
		panic("unsupported type")
	}
}

// Clone returns a deep copy on the same backend.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}

// Reshape returns a view with the given dimensions.
// Panics if the element count changes.
func (t *Tensor[T, B]) Reshape(dims ...int) *Tensor[T, B] {
	raw, err := t.raw.Reshape(Shape(dims))
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return New[T, B](raw, t.backend)
}

// Squeeze removes every size-1 dimension. A tensor of all ones keeps a
// single dimension.
func (t *Tensor[T, B]) Squeeze() *Tensor[T, B] {
	shape := t.Shape().Squeeze()
	if len(shape) == 0 {
		shape = Shape{1}
	}
	return t.Reshape(shape...)
}

// Argmax returns the index of the maximum along dim. The reduced dimension
// is removed from the result. Ties resolve to the lowest index.
func (t *Tensor[T, B]) Argmax(dim int) *Tensor[int64, B] {
	shape := t.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("argmax: dim %d out of range for %dD tensor", dim, len(shape)))
	}

	outer := Shape(shape[:dim]).NumElements()
	size := shape[dim]
	inner := Shape(shape[dim+1:]).NumElements()

	outShape := make(Shape, 0, len(shape)-1)
	outShape = append(outShape, shape[:dim]...)
	outShape = append(outShape, shape[dim+1:]...)
	if len(outShape) == 0 {
		outShape = Shape{1}
	}

	out := Zeros[int64](outShape, t.backend)
	src := t.Data()
	dst := out.Data()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*size*inner + i
			best := 0
			for k := 1; k < size; k++ {
				if src[base+k*inner] > src[base+best*inner] {
					best = k
				}
			}
			dst[o*inner+i] = int64(best)
		}
	}
	return out
}

// String implements fmt.Stringer.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s)", t.Shape(), t.DType(), t.Device())
}
