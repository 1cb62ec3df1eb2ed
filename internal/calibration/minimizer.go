package calibration

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// Objective is a smooth scalar function of the flat parameter vector with
// its gradient. Grad writes the gradient at x into grad.
type Objective struct {
	Func func(x []float64) float64
	Grad func(grad, x []float64)
}

// Fit is the outcome of one minimization.
type Fit struct {
	X           []float64
	Value       float64
	Iterations  int
	Evaluations int
	// Converged is false when the minimizer stopped on its iteration cap or
	// could not make progress; X is then the best point found.
	Converged bool
	Status    string
}

// Minimizer minimizes an Objective from a starting point. Implementations
// must not keep state between calls.
type Minimizer interface {
	Minimize(ctx context.Context, obj Objective, x0 []float64) (Fit, error)
}

// MinimizerFunc adapts a function to the Minimizer interface.
type MinimizerFunc func(ctx context.Context, obj Objective, x0 []float64) (Fit, error)

// Minimize calls f.
func (f MinimizerFunc) Minimize(ctx context.Context, obj Objective, x0 []float64) (Fit, error) {
	return f(ctx, obj, x0)
}

// LBFGSSettings configures the L-BFGS minimizer. The value is copied into
// every minimization, so one settings value can serve all windows.
type LBFGSSettings struct {
	// MaxIterations caps the number of major iterations.
	MaxIterations int
	// GradientTolerance is the gradient norm below which the fit converges.
	GradientTolerance float64
	// Memory is the number of past updates kept for the Hessian estimate.
	Memory int
}

// DefaultLBFGSSettings returns the settings used by fit-motion.
func DefaultLBFGSSettings() LBFGSSettings {
	return LBFGSSettings{
		MaxIterations:     500,
		GradientTolerance: 1e-6,
		Memory:            6,
	}
}

// LBFGS minimizes with gonum's limited-memory BFGS implementation.
type LBFGS struct {
	settings LBFGSSettings
}

// NewLBFGS returns an L-BFGS minimizer with the given settings.
func NewLBFGS(settings LBFGSSettings) *LBFGS {
	return &LBFGS{settings: settings}
}

// Settings returns the minimizer configuration.
func (l *LBFGS) Settings() LBFGSSettings { return l.settings }

// Minimize runs L-BFGS from x0. Reaching the iteration cap or a line search
// stall is not an error: the best point found is returned with
// Converged=false. Cancelling ctx stops the solver at its next evaluation
// and returns the context error.
func (l *LBFGS) Minimize(ctx context.Context, obj Objective, x0 []float64) (Fit, error) {
	if err := ctx.Err(); err != nil {
		return Fit{}, err
	}
	problem := optimize.Problem{
		Func: obj.Func,
		Grad: obj.Grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: l.settings.GradientTolerance,
		MajorIterations:   l.settings.MaxIterations,
		Recorder:          ctxRecorder{ctx: ctx},
	}
	method := &optimize.LBFGS{Store: l.settings.Memory}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Fit{}, ctxErr
	}
	if result == nil {
		return Fit{}, fmt.Errorf("calibration: l-bfgs: %w", err)
	}

	fit := Fit{
		X:           result.X,
		Value:       result.F,
		Iterations:  result.MajorIterations,
		Evaluations: result.FuncEvaluations,
		Status:      result.Status.String(),
	}
	if err != nil {
		fit.Status = fmt.Sprintf("%s: %v", fit.Status, err)
		return fit, nil
	}
	switch result.Status {
	case optimize.Success, optimize.FunctionThreshold, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		fit.Converged = true
	}
	return fit, nil
}

// ctxRecorder aborts a gonum optimization once its context is done. gonum
// calls Record after every operation and stops on the first error.
type ctxRecorder struct {
	ctx context.Context
}

func (r ctxRecorder) Init() error {
	return r.ctx.Err()
}

func (r ctxRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}
