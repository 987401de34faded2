// Package fastasd estimates smooth, localized linear receptive fields with
// automatic smoothness determination (ASD) and its Fourier-domain variant,
// fastASD.
//
// The weights w of a linear model y = X w + noise get a Gaussian prior whose
// covariance is a squared-exponential kernel on the stimulus grid, reweighted
// per coefficient by a latent field u passed through a nonlinearity. Inference
// alternates between the latent field, the dual weight estimate and an
// evidence-driven update of the hyperparameters (rho, delta, b, nsevar, len).
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/fastasd/inference"
//	)
//
//	func main() {
//	    cfg := inference.DefaultConfig()
//	    cfg.Dims = []int{8, 8}
//
//	    est := inference.NewEstimator(cfg)
//	    if err := est.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(est.Result().Params)
//	}
//
// # Packages
//
//   - fourier: Fourier basis, pruning and the diagonal covariance (FourierCovariance)
//   - evidence: marginal likelihood and its gradient (EvidenceObjective)
//   - latent: MAP optimization and Langevin sampling of the latent field (LatentFieldSolver)
//   - dual: weight estimate through the n x n dual system (DualWeightEstimator)
//   - hyper: hyperparameter objective, optimization and slice sampling (HyperparameterUpdater)
//   - inference: configuration, the alternating loop and an Estimator (InferenceDriver)
//   - prior, optim: hyperprior densities and box-constrained minimization
//   - dataset, preprocessing, metrics, linear, plotter: data handling, diagnostics and baselines
//   - cmd/fastasd: command line interface
//
// # License
//
// fastasd is released under the MIT License.
package fastasd
