package demand

import "fmt"

// DimensionError reports a shape mismatch between related inputs. Context
// names the quantity being checked.
type DimensionError struct {
	Context  string
	Expected int
	Found    int
}

// Error implements the error interface
func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: expected %d, found %d", e.Context, e.Expected, e.Found)
}

// InvalidShareError reports an observed share that is not strictly positive.
type InvalidShareError struct {
	Index int
	Share float64
}

// Error implements the error interface
func (e *InvalidShareError) Error() string {
	return fmt.Sprintf("observed share at index %d must be strictly positive, found %g", e.Index, e.Share)
}

// OutsideShareError reports a market whose observed shares sum to one or
// more, leaving no room for the outside option.
type OutsideShareError struct {
	MarketID string
	Share    float64
}

// Error implements the error interface
func (e *OutsideShareError) Error() string {
	return fmt.Sprintf("market %q has non-positive outside share %g", e.MarketID, e.Share)
}

// NonContiguousMarketError reports a market label appearing in non-adjacent
// blocks of the product table.
type NonContiguousMarketError struct {
	MarketID string
}

// Error implements the error interface
func (e *NonContiguousMarketError) Error() string {
	return fmt.Sprintf("market %q is split across non-adjacent blocks; products in one market must be contiguous", e.MarketID)
}

// NonPositiveWeightError reports an integration weight that is not strictly
// positive and finite.
type NonPositiveWeightError struct {
	Index  int
	Weight float64
}

// Error implements the error interface
func (e *NonPositiveWeightError) Error() string {
	return fmt.Sprintf("integration weight at index %d must be strictly positive, found %g", e.Index, e.Weight)
}

// InvalidWeightsError reports integration weights whose sum deviates from one
// by more than the allowed slack.
type InvalidWeightsError struct {
	Slack float64
}

// Error implements the error interface
func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("integration weights must sum to 1, off by %g", e.Slack)
}

// SingularMatrixError reports a failed Cholesky factorization. Context names
// the matrix that failed.
type SingularMatrixError struct {
	Context string
}

// Error implements the error interface
func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("matrix %s is singular or not positive definite", e.Context)
}

// ConvergenceError reports a contraction that exhausted its iteration budget
// before the convergence gap fell below tolerance.
type ConvergenceError struct {
	Iterations int
	MaxGap     float64
}

// Error implements the error interface
func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("contraction did not converge after %d iterations (max gap %g)", e.Iterations, e.MaxGap)
}

// NumericalError reports a mid-computation numerical failure. Context names
// the failing operation.
type NumericalError struct {
	Context string
}

// Error implements the error interface
func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical failure in %s", e.Context)
}

// MissingComponentError reports an assembly step invoked without one of its
// required inputs.
type MissingComponentError struct {
	Component string
}

// Error implements the error interface
func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("missing required component: %s", e.Component)
}
