package demand

import (
	"gonum.org/v1/gonum/mat"
)

// computeWeighting resolves the GMM weighting matrix: the caller-supplied
// matrix verbatim when present, otherwise the conventional inverse of Z'Z
// obtained through a Cholesky factorization. A supplied matrix is never
// validated for positive-definiteness here; a bad one surfaces as the
// downstream "X'ZWZX" factorization failure.
func computeWeighting(data *ProductData, supplied *mat.SymDense) (*mat.SymDense, error) {
	m := data.InstrumentDim()
	if supplied != nil {
		if r := supplied.SymmetricDim(); r != m {
			return nil, &DimensionError{Context: "weighting matrix", Expected: m, Found: r}
		}
		return supplied, nil
	}

	z := data.iv
	var ztz mat.Dense
	ztz.Mul(z.T(), z)

	var chol mat.Cholesky
	if !chol.Factorize(denseToSym(&ztz)) {
		return nil, &SingularMatrixError{Context: "Z'Z inversion"}
	}
	var w mat.SymDense
	if err := chol.InverseTo(&w); err != nil {
		return nil, &SingularMatrixError{Context: "Z'Z inversion"}
	}
	return &w, nil
}

// computeLinearParameters solves the weighted two-stage least squares normal
// equations (X1'Z W Z'X1) beta = X1'Z W Z'delta for the linear parameters,
// forms the structural residual xi = delta - X1*beta, and evaluates the GMM
// objective xi'Z W Z'xi. The left-hand matrix failing to factorize signals an
// under-identified model or collinear characteristics and is reported, not
// retried.
func computeLinearParameters(delta []float64, data *ProductData, w *mat.SymDense) (beta, xi []float64, objective float64, err error) {
	x1, z := data.x1, data.iv
	n := data.NumProducts()
	k1 := data.LinearDim()

	var zx mat.Dense // m x k1
	zx.Mul(z.T(), x1)
	var zd mat.VecDense // m
	zd.MulVec(z.T(), mat.NewVecDense(n, delta))

	var wzx mat.Dense // m x k1
	wzx.Mul(w, &zx)
	var lhs mat.Dense // k1 x k1, X1'Z W Z'X1
	lhs.Mul(zx.T(), &wzx)

	var chol mat.Cholesky
	if !chol.Factorize(denseToSym(&lhs)) {
		return nil, nil, 0, &SingularMatrixError{Context: "X'ZWZX"}
	}

	var wzd mat.VecDense // m
	wzd.MulVec(w, &zd)
	var rhs mat.VecDense // k1, X1'Z W Z'delta
	rhs.MulVec(zx.T(), &wzd)

	var betaVec mat.VecDense
	if solveErr := chol.SolveVecTo(&betaVec, &rhs); solveErr != nil {
		return nil, nil, 0, &SingularMatrixError{Context: "X'ZWZX"}
	}

	var fitted mat.VecDense // n, X1*beta
	fitted.MulVec(x1, &betaVec)
	xi = make([]float64, n)
	for i := range xi {
		xi[i] = delta[i] - fitted.AtVec(i)
	}

	var zxi mat.VecDense // m, Z'xi
	zxi.MulVec(z.T(), mat.NewVecDense(n, xi))
	objective = mat.Inner(&zxi, w, &zxi)

	beta = make([]float64, k1)
	for i := range beta {
		beta[i] = betaVec.AtVec(i)
	}
	return beta, xi, objective, nil
}

// denseToSym copies the upper triangle of a square matrix into a SymDense so
// it can feed a Cholesky factorization. The inputs here are quadratic forms,
// symmetric up to floating-point roundoff.
func denseToSym(a *mat.Dense) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, a.At(i, j))
		}
	}
	return s
}
