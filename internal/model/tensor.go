package model

import "fmt"

// InputSize is the spatial size every network in the service is fed with.
const InputSize = 224

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// ImageShape is the NHWC shape produced by both preprocessing contracts.
func ImageShape() []int64 {
	return []int64{1, InputSize, InputSize, 3}
}

// Len returns the number of elements implied by the shape.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// CheckShape reports an error unless t has exactly the given shape and a
// matching amount of data.
func (t Tensor) CheckShape(want []int64) error {
	if len(t.Shape) != len(want) {
		return fmt.Errorf("tensor shape %v, expected %v", t.Shape, want)
	}
	for i := range want {
		if t.Shape[i] != want[i] {
			return fmt.Errorf("tensor shape %v, expected %v", t.Shape, want)
		}
	}
	if len(t.Data) != t.Len() {
		return fmt.Errorf("tensor holds %d values, shape %v needs %d", len(t.Data), t.Shape, t.Len())
	}
	return nil
}
