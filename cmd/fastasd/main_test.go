package main

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/fastasd/dataset"
	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/linear"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Definition(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "fastasd", root.Use)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "synth")

	flag := root.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "warn", flag.DefValue)
}

func TestSynthCmd(t *testing.T) {
	out, err := execute(t, "synth", "--n", "6", "--dims", "3,2", "--seed", "4")
	require.NoError(t, err)

	ds, err := dataset.LoadCSV(strings.NewReader(out), []int{3, 2})
	require.NoError(t, err)
	assert.Equal(t, 6, ds.N)
	assert.Equal(t, 6, ds.P)

	again, err := execute(t, "synth", "--n", "6", "--dims", "3,2", "--seed", "4")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	path := filepath.Join(t.TempDir(), "data.csv")
	_, err = execute(t, "synth", "--n", "4", "--dims", "4", "--out", path)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(b), "\n"))
}

func TestRunCmdCSV(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data.csv")
	_, err := execute(t, "synth", "--n", "20", "--dims", "4,4", "--out", data)
	require.NoError(t, err)

	plot := filepath.Join(dir, "trace.png")
	out, err := execute(t, "run", "--data", data, "--dims", "4,4", "--iters", "3", "--plot", plot, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "iterations")
	assert.Contains(t, out, "nsevar")
	assert.NotContains(t, out, "corr(w, w_true)")

	info, err := os.Stat(plot)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRunCmdSynthetic(t *testing.T) {
	out, err := execute(t, "run", "--dims", "4,4", "--n", "20", "--iters", "3", "--mode", "sample", "--baseline", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "corr(w, w_true)")
	assert.Contains(t, out, "ridge alpha")
	assert.Contains(t, out, "ridge corr(w, w_true)")
}

func TestRunCmdErrors(t *testing.T) {
	_, err := execute(t, "run", "--mode", "anneal", "--log-level", "error")
	assert.Error(t, err)

	_, err = execute(t, "run", "--data", filepath.Join(t.TempDir(), "missing.csv"), "--log-level", "error")
	assert.Error(t, err)

	_, err = execute(t, "run", "--log-level", "loud")
	assert.Error(t, err)
}

func TestRidgeBaselineUsesRidgeEvidence(t *testing.T) {
	sc := dataset.DefaultSyntheticConfig()
	sc.N, sc.Dims = 30, []int{4, 4}
	ds, _, err := dataset.Synthetic(sc, rand.New(rand.NewPCG(5, 6)))
	require.NoError(t, err)
	ds, _, err = ds.Center()
	require.NoError(t, err)

	ridge, th, err := ridgeBaseline(ds)
	require.NoError(t, err)
	require.Len(t, ridge.Weights(), ds.P)

	data, err := evidence.NewData(ds.X, ds.Y)
	require.NoError(t, err)
	start, err := evidence.Evaluate(evidence.RidgeStart(ds.Y, ds.P), data, evidence.OrderValue)
	require.NoError(t, err)
	fit, err := evidence.Evaluate(th, data, evidence.OrderValue)
	require.NoError(t, err)
	assert.LessOrEqual(t, fit.NegLogEv, start.NegLogEv)

	// the penalty is the evidence-optimal nsevar/rho
	want := linear.NewRidge(th.Nsevar/th.Rho, linear.WithFitIntercept(false))
	require.NoError(t, want.Fit(ds.X, ds.Y))
	assert.InDeltaSlice(t, want.Weights(), ridge.Weights(), 1e-12)
}
