package optim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// boundKind describes how one coordinate is mapped between the free variable z
// and the bounded variable x.
type boundKind int

const (
	unbounded boundKind = iota
	lower               // x = lb + exp(z)
	upper               // x = ub - exp(z)
	both                // x = lb + (ub-lb) * sigmoid(z)
	fixed               // x = lb = ub
)

// edgeEps keeps starting points strictly inside the box.
const edgeEps = 1e-10

type box struct {
	lb, ub []float64
	kind   []boundKind
}

func newBox(lb, ub []float64, dim int) (*box, error) {
	if lb != nil && len(lb) != dim {
		return nil, errors.NewDimensionError("optim.Minimize", dim, len(lb), 0)
	}
	if ub != nil && len(ub) != dim {
		return nil, errors.NewDimensionError("optim.Minimize", dim, len(ub), 0)
	}
	b := &box{lb: make([]float64, dim), ub: make([]float64, dim), kind: make([]boundKind, dim)}
	for i := 0; i < dim; i++ {
		b.lb[i], b.ub[i] = math.Inf(-1), math.Inf(1)
		if lb != nil {
			b.lb[i] = lb[i]
		}
		if ub != nil {
			b.ub[i] = ub[i]
		}
		lo, hi := b.lb[i], b.ub[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
			return nil, errors.NewConfigurationError("optim.Minimize", "bounds",
				fmt.Sprintf("invalid bounds [%g, %g] for coordinate %d", lo, hi, i))
		}
		finLo, finHi := !math.IsInf(lo, 0), !math.IsInf(hi, 0)
		switch {
		case finLo && finHi && lo == hi:
			b.kind[i] = fixed
		case finLo && finHi:
			b.kind[i] = both
		case finLo:
			b.kind[i] = lower
		case finHi:
			b.kind[i] = upper
		}
	}
	return b, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// toFree maps a bounded point to free coordinates, clamping it into the box.
func (b *box) toFree(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, xi := range x {
		lo, hi := b.lb[i], b.ub[i]
		switch b.kind[i] {
		case unbounded:
			z[i] = xi
		case lower:
			z[i] = math.Log(math.Max(xi-lo, edgeEps))
		case upper:
			z[i] = math.Log(math.Max(hi-xi, edgeEps))
		case both:
			t := errors.ClipValue((xi-lo)/(hi-lo), edgeEps, 1-edgeEps)
			z[i] = math.Log(t / (1 - t))
		case fixed:
			z[i] = 0
		}
	}
	return z
}

// toBox writes the bounded point for z into dst and returns it.
func (b *box) toBox(dst, z []float64) []float64 {
	for i, zi := range z {
		lo, hi := b.lb[i], b.ub[i]
		switch b.kind[i] {
		case unbounded:
			dst[i] = zi
		case lower:
			dst[i] = lo + math.Exp(zi)
		case upper:
			dst[i] = hi - math.Exp(zi)
		case both:
			dst[i] = lo + (hi-lo)*sigmoid(zi)
		case fixed:
			dst[i] = lo
		}
	}
	return dst
}

// jac returns dx/dz and d2x/dz2 of coordinate i.
func (b *box) jac(i int, zi float64) (d1, d2 float64) {
	switch b.kind[i] {
	case unbounded:
		return 1, 0
	case lower:
		e := math.Exp(zi)
		return e, e
	case upper:
		e := math.Exp(zi)
		return -e, -e
	case both:
		s := sigmoid(zi)
		w := b.ub[i] - b.lb[i]
		return w * s * (1 - s), w * s * (1 - s) * (1 - 2*s)
	default:
		return 0, 0
	}
}

func (b *box) chainGrad(gz, gx, z []float64) {
	for i := range gz {
		d1, _ := b.jac(i, z[i])
		gz[i] = gx[i] * d1
	}
}

func (b *box) chainHess(hz, hx *mat.SymDense, gx, z []float64) {
	n := len(z)
	d1 := make([]float64, n)
	d2 := make([]float64, n)
	for i := range z {
		d1[i], d2[i] = b.jac(i, z[i])
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := d1[i] * hx.At(i, j) * d1[j]
			if i == j {
				v += gx[i] * d2[i]
			}
			hz.SetSym(i, j, v)
		}
	}
}
