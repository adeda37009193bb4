package fasttext

import (
	"fmt"
	"math"
)

const maxMatrixLen = math.MaxInt / 4

// denseMatrix is a row-major m x n matrix of float32.
type denseMatrix struct {
	m, n int64
	data []float32
}

func (mat *denseMatrix) read(r *binReader) error {
	mat.m = r.int64()
	mat.n = r.int64()
	if r.err != nil {
		return r.err
	}
	if mat.m < 0 || mat.n < 0 || (mat.n > 0 && mat.m > maxMatrixLen/mat.n) {
		return fmt.Errorf("%w: matrix shape %dx%d", ErrInvalidModel, mat.m, mat.n)
	}
	if !r.fits(4 * mat.m * mat.n) {
		return fmt.Errorf("%w: matrix shape %dx%d is larger than the rest of the file", ErrInvalidModel, mat.m, mat.n)
	}
	mat.data = r.readFloat32s(mat.m * mat.n)
	return r.err
}

func (mat *denseMatrix) write(w *binWriter) {
	w.int64(mat.m)
	w.int64(mat.n)
	w.float32s(mat.data)
}

func (mat *denseMatrix) row(i int32) []float32 {
	off := int64(i) * mat.n
	return mat.data[off : off+mat.n]
}

// addRowTo adds row i into vec. Ids outside the matrix are ignored.
func (mat *denseMatrix) addRowTo(vec []float32, i int32) {
	if i < 0 || int64(i) >= mat.m {
		return
	}
	for j, v := range mat.row(i) {
		vec[j] += v
	}
}

func (mat *denseMatrix) dotRow(vec []float32, i int32) float32 {
	var sum float32
	for j, v := range mat.row(i) {
		sum += v * vec[j]
	}
	return sum
}
