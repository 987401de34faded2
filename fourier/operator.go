package fourier

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/core/parallel"
)

// rowParallelThreshold is the number of matrix rows above which ApplyRows and
// AdjointRows fan out across cores.
const rowParallelThreshold = 32

// Operator maps between a truncated Fourier coefficient vector and a real grid
// vector. The grid is stored row-major over (axis 0, axis 1); a 1-D grid is a
// d x 1 grid. The operator is never materialised: each application is two
// dense per-axis products.
type Operator struct {
	dims   [2]int
	nc     [2]int
	bases  [2]*mat.Dense // nc[a] x dims[a]
	keep   []int         // flat indices into the nc[0] x nc[1] coefficient grid
	gridSz int
}

func newOperator(dims, nc [2]int, keep []int) *Operator {
	op := &Operator{dims: dims, nc: nc, keep: keep, gridSz: dims[0] * dims[1]}
	for a := 0; a < 2; a++ {
		op.bases[a], _ = Basis(dims[a], nc[a])
	}
	return op
}

// Len is the number of retained Fourier coefficients.
func (op *Operator) Len() int { return len(op.keep) }

// GridLen is the number of real grid points.
func (op *Operator) GridLen() int { return op.gridSz }

// Apply maps Fourier coefficients to the real grid: dst = G v.
// dst may be nil.
func (op *Operator) Apply(dst, v []float64) []float64 {
	if len(v) != len(op.keep) {
		panic("fourier: coefficient length mismatch")
	}
	if dst == nil {
		dst = make([]float64, op.gridSz)
	}
	full := mat.NewDense(op.nc[0], op.nc[1], nil)
	for k, idx := range op.keep {
		full.Set(idx/op.nc[1], idx%op.nc[1], v[k])
	}
	var tmp mat.Dense
	tmp.Mul(op.bases[0].T(), full)
	grid := mat.NewDense(op.dims[0], op.dims[1], dst)
	grid.Mul(&tmp, op.bases[1])
	return dst
}

// Adjoint maps a real grid vector to Fourier coefficients: dst = G' x.
// dst may be nil.
func (op *Operator) Adjoint(dst, x []float64) []float64 {
	if len(x) != op.gridSz {
		panic("fourier: grid length mismatch")
	}
	if dst == nil {
		dst = make([]float64, len(op.keep))
	}
	grid := mat.NewDense(op.dims[0], op.dims[1], x)
	var tmp, full mat.Dense
	tmp.Mul(op.bases[0], grid)
	full.Mul(&tmp, op.bases[1].T())
	for k, idx := range op.keep {
		dst[k] = full.At(idx/op.nc[1], idx%op.nc[1])
	}
	return dst
}

// ApplyRows applies the operator to every row of a (rows x Len) and returns
// the rows x GridLen result.
func (op *Operator) ApplyRows(a mat.Matrix) *mat.Dense {
	rows, _ := a.Dims()
	out := mat.NewDense(rows, op.gridSz, nil)
	parallel.ForEachRow(rows, rowParallelThreshold, func(i int) {
		op.Apply(out.RawRowView(i), mat.Row(nil, i, a))
	})
	return out
}

// AdjointRows applies the adjoint to every row of x (rows x GridLen) and
// returns the rows x Len result.
func (op *Operator) AdjointRows(x mat.Matrix) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, len(op.keep), nil)
	parallel.ForEachRow(rows, rowParallelThreshold, func(i int) {
		op.Adjoint(out.RawRowView(i), mat.Row(nil, i, x))
	})
	return out
}

// Dense materialises the GridLen x Len matrix of the operator. It exists for
// reference checks on small grids.
func (op *Operator) Dense() *mat.Dense {
	out := mat.NewDense(op.gridSz, len(op.keep), nil)
	e := make([]float64, len(op.keep))
	col := make([]float64, op.gridSz)
	for k := range op.keep {
		e[k] = 1
		op.Apply(col, e)
		out.SetCol(k, col)
		e[k] = 0
	}
	return out
}
