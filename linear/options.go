package linear

// Option configures a Regression.
type Option func(*Regression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *Regression) {
		lr.fitIntercept = fit
	}
}

// WithAlpha sets the ridge penalty. 0 gives ordinary least squares.
func WithAlpha(alpha float64) Option {
	return func(lr *Regression) {
		lr.alpha = alpha
	}
}

// WithTol sets the relative singular-value threshold used for Rank.
func WithTol(tol float64) Option {
	return func(lr *Regression) {
		lr.tol = tol
	}
}
