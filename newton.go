package pfsolver

import "math/cmplx"

// Result carries the outcome of a Driver.Solve call.
type Result struct {
	U          []Vec[complex128]
	Iterations int
	MaxDev     float64
}

// Driver runs the outer Newton-Raphson power-flow iteration (spec.md
// §4.4): seed from a linear solve, then repeatedly assemble the
// Jacobian, solve it, and update the polar voltage state until the max
// elementwise voltage deviation falls below tolerance.
type Driver struct {
	Pattern *Pattern
	BusK    int
	Cfg     *Config

	linear *SparseLU[complex128]
	jac    *SparseLU[float64]
}

// NewDriver constructs a driver bound to pat, with busK phases per bus
// (1 for the symmetric case, 3 for the asymmetric case). A nil cfg takes
// DefaultConfig().
func NewDriver(pat *Pattern, busK int, cfg *Config) *Driver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Driver{
		Pattern: pat,
		BusK:    busK,
		Cfg:     cfg,
		linear:  NewSparseLU[complex128](pat, busK, cfg),
		jac:     NewSparseLU[float64](pat, 2*busK, cfg),
	}
}

// BuildLinearSeed constructs the approximate admittance system (spec
// §3.7): a copy of y with each source's reference admittance folded into
// its bus's diagonal, and a current-injection rhs from each source's
// Norton-equivalent current y_ref*u_ref.
func BuildLinearSeed(pat *Pattern, y []Block[complex128], sources []Source, busK int) ([]Block[complex128], []Vec[complex128]) {
	data := make([]Block[complex128], len(y))
	copy(data, y)

	rhs := make([]Vec[complex128], pat.N)
	for i := range rhs {
		rhs[i].Zero(busK)
	}

	for si := range sources {
		src := &sources[si]
		diagIdx := pat.DiagLU[src.Bus]
		sum := blockAdd(&data[diagIdx], &src.YRef)
		data[diagIdx] = sum
		inj := blockMatVec(&src.YRef, &src.URef)
		updated := vecAdd(&rhs[src.Bus], &inj)
		rhs[src.Bus] = updated
	}
	return data, rhs
}

// Solve runs the full Newton-Raphson iteration and returns converged
// voltages, or ErrDidNotConverge/ErrSingular/ErrAssembly.
func (d *Driver) Solve(y []Block[complex128], loads []Load, sources []Source) (*Result, error) {
	n := d.Pattern.N
	busK := d.BusK

	seedData, seedRHS := BuildLinearSeed(d.Pattern, y, sources, busK)
	seedPerms := make([]BlockPerm, n)
	u := make([]Vec[complex128], n)
	for i := range u {
		u[i].Zero(busK)
	}
	if err := d.linear.PrefactorizeAndSolve(seedData, seedPerms, seedRHS, u, d.Cfg.AllowPerturb); err != nil {
		return nil, err
	}

	theta := make([]Vec[float64], n)
	v := make([]Vec[float64], n)
	for i := 0; i < n; i++ {
		theta[i].Zero(busK)
		v[i].Zero(busK)
		for a := 0; a < busK; a++ {
			v[i].Data[a] = cabs(u[i].Data[a])
			theta[i].Data[a] = cmplx.Phase(u[i].Data[a])
		}
	}

	jacData := make([]Block[float64], d.Pattern.NNZ())
	for i := range jacData {
		jacData[i] = NewBlock[float64](2 * busK)
	}
	jacPerms := make([]BlockPerm, n)
	dpq := make([]Vec[float64], n)
	dx := make([]Vec[float64], n)

	maxDev := 0.0
	for iter := 0; iter < d.Cfg.MaxNewtonIter; iter++ {
		if err := AssembleJacobian(d.Pattern, u, y, loads, sources, busK, jacData, dpq); err != nil {
			return nil, err
		}

		if err := d.jac.PrefactorizeAndSolve(jacData, jacPerms, dpq, dx, d.Cfg.AllowPerturb); err != nil {
			return nil, err
		}

		maxDev = 0.0
		for i := 0; i < n; i++ {
			for a := 0; a < busK; a++ {
				theta[i].Data[a] += dx[i].Data[a]
				v[i].Data[a] += v[i].Data[a] * dx[i].Data[busK+a]
				newU := complex(v[i].Data[a], 0) * cmplx.Exp(complex(0, theta[i].Data[a]))
				if dev := cabs(newU - u[i].Data[a]); dev > maxDev {
					maxDev = dev
				}
				u[i].Data[a] = newU
			}
		}

		d.traceIteration(iter, maxDev)

		if maxDev < d.Cfg.ConvergenceTol {
			return &Result{U: u, Iterations: iter + 1, MaxDev: maxDev}, nil
		}
	}

	return &Result{U: u, Iterations: d.Cfg.MaxNewtonIter, MaxDev: maxDev},
		AnnotateErr(ErrDidNotConverge, "newton: exhausted %d iterations, max deviation %.3e", d.Cfg.MaxNewtonIter, maxDev)
}
