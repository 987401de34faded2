// Package plotter renders iteration traces of an inference run. It is an
// optional inference.Observer; the core packages never import it.
package plotter

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	gp "gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"

	"github.com/YuminosukeSato/fastasd/hyper"
	"github.com/YuminosukeSato/fastasd/inference"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

var _ inference.Observer = (*TraceObserver)(nil)

// Figure size of Save.
const (
	Width  = 6 * vg.Inch
	Height = 8 * vg.Inch
)

// TraceObserver records diagnostics and hyperparameters per iteration.
// It is safe to Save while a run is still reporting.
type TraceObserver struct {
	mu        sync.Mutex
	iteration []float64
	sqErr     []float64
	wDif      []float64
	params    [hyper.NumParams][]float64
}

// NewTraceObserver returns an empty recorder.
func NewTraceObserver() *TraceObserver {
	return &TraceObserver{}
}

// Observe appends one report.
func (o *TraceObserver) Observe(r inference.Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.iteration = append(o.iteration, float64(r.Iteration))
	o.sqErr = append(o.sqErr, r.SqErr)
	o.wDif = append(o.wDif, r.WDif)
	for i, v := range r.Params.Vec() {
		o.params[i] = append(o.params[i], v)
	}
}

// Len returns the number of recorded iterations.
func (o *TraceObserver) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.iteration)
}

// Trace returns a copy of the named series: "sq_err", "w_dif" or one of
// hyper.ParamNames. Unknown names give nil.
func (o *TraceObserver) Trace(name string) []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch name {
	case "sq_err":
		return append([]float64(nil), o.sqErr...)
	case "w_dif":
		return append([]float64(nil), o.wDif...)
	}
	for i, n := range hyper.ParamNames {
		if n == name {
			return append([]float64(nil), o.params[i]...)
		}
	}
	return nil
}

func (o *TraceObserver) xys(ys []float64) gp.XYs {
	pts := make(gp.XYs, len(ys))
	for i, y := range ys {
		pts[i].X = o.iteration[i]
		pts[i].Y = y
	}
	return pts
}

func newPanel(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = ylabel
	p.Add(gp.NewGrid())
	return p
}

func (o *TraceObserver) addLine(p *plot.Plot, name string, ys []float64, k int) error {
	l, err := gp.NewLine(o.xys(ys))
	if err != nil {
		return err
	}
	l.Color = plotutil.Color(k)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

// Plots builds the three panels: residual, weight change and hyperparameters.
func (o *TraceObserver) Plots() ([]*plot.Plot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.iteration) == 0 {
		return nil, errors.NewValueError("TraceObserver.Plots", "no iterations recorded")
	}

	res := newPanel("relative residual", "|y - Xw| / |y|")
	if err := o.addLine(res, "sq_err", o.sqErr, 0); err != nil {
		return nil, err
	}
	dif := newPanel("weight change", "|w - w_prev|")
	if err := o.addLine(dif, "w_dif", o.wDif, 0); err != nil {
		return nil, err
	}
	hp := newPanel("hyperparameters", "value")
	for i, name := range hyper.ParamNames {
		if err := o.addLine(hp, name, o.params[i], i); err != nil {
			return nil, err
		}
	}
	return []*plot.Plot{res, dif, hp}, nil
}

// Save renders the panels stacked vertically. The format follows the file
// extension (png, svg, pdf, eps, jpg, tif); no extension means png.
func (o *TraceObserver) Save(path string) error {
	const op = "TraceObserver.Save"
	plots, err := o.Plots()
	if err != nil {
		return err
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}
	c, err := draw.NewFormattedCanvas(Width, Height, format)
	if err != nil {
		return errors.Wrap(err, op)
	}

	grid := make([][]*plot.Plot, len(plots))
	for i, p := range plots {
		grid[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{Rows: len(plots), Cols: 1, PadTop: vg.Points(4), PadBottom: vg.Points(4), PadY: vg.Points(8)}
	canvases := plot.Align(grid, tiles, draw.New(c))
	for i, p := range plots {
		p.Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if _, err := c.WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrap(err, op)
	}
	return errors.Wrap(f.Close(), op)
}
