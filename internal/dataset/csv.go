package dataset

import (
	"encoding/csv"
	"fmt"
	"os"

	"blpcli/internal/demand"
	apperrors "blpcli/internal/errors"
)

// LoadCSV loads a product table from a CSV file. The first row must be a
// header naming every column the formulation references.
func LoadCSV(path string, f Formulation) (*demand.ProductData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open dataset %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Ragged rows are resolved per cell so errors carry column context.
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read CSV records from %s", path), err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewDataError(fmt.Sprintf("dataset %s is empty", path), nil)
	}
	return assembleTable(records[0], records[1:], f)
}
