package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewConfigurationError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		param   string
		reason  string
		wantMsg string
	}{
		{
			name:    "with parameter",
			op:      "fourier.Build",
			param:   "condThreshold",
			reason:  "no frequencies retained",
			wantMsg: "fastasd: fourier.Build: invalid configuration of 'condThreshold': no frequencies retained",
		},
		{
			name:    "without parameter",
			op:      "fourier.Transform",
			reason:  "expected 0 or 2 padding arguments",
			wantMsg: "fastasd: fourier.Transform: invalid configuration: expected 0 or 2 padding arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigurationError(tt.op, tt.param, tt.reason)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			if !IsConfigurationError(err) {
				t.Error("expected IsConfigurationError to be true")
			}
			// スタックトレースの存在確認
			if !strings.Contains(fmt.Sprintf("%+v", err), "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}
		})
	}

	if IsConfigurationError(NewValueError("op", "msg")) {
		t.Error("ValueError must not be reported as a configuration error")
	}
}

func TestModelErrorChaining(t *testing.T) {
	base := fmt.Errorf("base error")
	err := NewModelError("dual.Estimate", "factorisation failed", Wrap(base, "cholesky"))

	if !strings.Contains(err.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}
	var modelErr *ModelError
	if !As(err, &modelErr) {
		t.Fatal("Error should be castable to *ModelError")
	}
	if modelErr.Op != "dual.Estimate" {
		t.Errorf("Op = %q", modelErr.Op)
	}
	if !Is(Wrap(ErrNotPositiveDefinite, "S"), ErrNotPositiveDefinite) {
		t.Error("Expected Is to see through Wrap")
	}
}

func TestWarnRoutesToHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(error) {})

	Warn(NewConvergenceWarning("lbfgs", 50, "function evaluation limit"))
	Warn(NewDegenerateStartWarning("hyper.Optimize", 3, []float64{1, 2}))

	if len(got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got))
	}
	want := "lbfgs failed to converge after 50 iterations: function evaluation limit"
	if got[0].Error() != want {
		t.Errorf("Error() = %q, want %q", got[0].Error(), want)
	}
}

func TestClampInf(t *testing.T) {
	tests := []struct {
		name     string
		in       []float64
		fallback float64
		want     []float64
	}{
		{"no infinities", []float64{1, 2, 3}, 0, []float64{1, 2, 3}},
		{"clamped to max finite", []float64{1, math.Inf(1), 5}, 0, []float64{1, 5, 5}},
		{"all infinite", []float64{math.Inf(1), math.Inf(1)}, 7, []float64{7, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampInf(append([]float64(nil), tt.in...), tt.fallback)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("ClampInf()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCheckScalar(t *testing.T) {
	if err := CheckScalar("evidence", 1.5, 0); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	err := CheckScalar("evidence", math.NaN(), 4)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 4 {
		t.Errorf("Iteration = %d, want 4", numErr.Iteration)
	}
}

func TestSafeExecute(t *testing.T) {
	err := SafeExecute("matrix inversion", func() error {
		panic("mat: dimension mismatch")
	})
	var panicErr *PanicError
	if !As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %T", err)
	}
	if panicErr.Operation != "matrix inversion" {
		t.Errorf("Operation = %q", panicErr.Operation)
	}
	if err := SafeExecute("noop", func() error { return nil }); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
