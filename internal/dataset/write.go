package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"blpcli/internal/demand"
	apperrors "blpcli/internal/errors"
)

// columnRole identifies which matrix a written column is sourced from.
type columnRole int

const (
	roleLinear columnRole = iota
	roleNonlinear
	roleInstrument
)

// WriteCSV writes a product table to a CSV file under the formulation's
// column names, in a layout LoadCSV accepts back. A column appearing in
// several roles is written once; the loader re-binds it to every role that
// names it.
func WriteCSV(path string, data *demand.ProductData, f Formulation) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if got := data.LinearDim(); got != len(f.Linear) {
		return apperrors.NewValidationError(
			fmt.Sprintf("formulation names %d linear columns but the table has %d", len(f.Linear), got))
	}
	if got := data.NonlinearDim(); got != len(f.Nonlinear) {
		return apperrors.NewValidationError(
			fmt.Sprintf("formulation names %d nonlinear columns but the table has %d", len(f.Nonlinear), got))
	}
	if got := data.InstrumentDim(); len(f.Instruments) > 0 && got != len(f.Instruments) {
		return apperrors.NewValidationError(
			fmt.Sprintf("formulation names %d instrument columns but the table has %d", len(f.Instruments), got))
	}

	type column struct {
		name  string
		role  columnRole
		index int
	}
	header := []string{f.Market, f.Share}
	seen := map[string]struct{}{
		strings.ToLower(f.Market): {},
		strings.ToLower(f.Share):  {},
	}
	var columns []column
	addColumns := func(names []string, role columnRole) {
		for i, name := range names {
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			header = append(header, name)
			columns = append(columns, column{name: name, role: role, index: i})
		}
	}
	addColumns(f.Linear, roleLinear)
	addColumns(f.Nonlinear, roleNonlinear)
	addColumns(f.Instruments, roleInstrument)

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create dataset %s", path), err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return apperrors.NewStorageError("failed to write dataset header", err)
	}

	record := make([]string, len(header))
	for r := 0; r < data.NumProducts(); r++ {
		record[0] = data.MarketIDs()[r]
		record[1] = strconv.FormatFloat(data.Shares()[r], 'g', -1, 64)
		for c, col := range columns {
			var v float64
			switch col.role {
			case roleLinear:
				v = data.Linear().At(r, col.index)
			case roleNonlinear:
				v = data.Nonlinear().At(r, col.index)
			case roleInstrument:
				v = data.Instruments().At(r, col.index)
			}
			record[c+2] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write dataset row %d", r), err)
		}
	}

	writer.Flush()
	return writer.Error()
}
