// Package dataset loads product tables for demand estimation from CSV and
// XLSX files. A Formulation names the columns that play each role: the
// market label, the observed share, the linear and nonlinear characteristics,
// and the instruments. Loaders resolve the columns against the file header,
// parse cells with row/column context on failure, and hand the assembled
// table to the estimation engine for validation.
//
// Row order is preserved exactly as it appears in the file. The engine
// requires each market's products to form one contiguous block, so a file
// that interleaves markets is rejected with the offending market named
// rather than silently reordered.
//
// # Usage Example
//
//	form := dataset.Formulation{
//	    Market:    "market",
//	    Share:     "share",
//	    Linear:    []string{"const", "price"},
//	    Nonlinear: []string{"price"},
//	}
//	data, err := dataset.LoadCSV("products.csv", form)
//	if err != nil {
//	    return err
//	}
//	problem, err := demand.NewProblem(data, draws, opts, logger)
package dataset
