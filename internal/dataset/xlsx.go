package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"blpcli/internal/demand"
	apperrors "blpcli/internal/errors"
)

// LoadXLSX loads a product table from an XLSX workbook. An empty sheet name
// selects the first sheet; otherwise the sheet is matched ignoring case. The
// first row of the sheet must be a header naming every column the
// formulation references.
func LoadXLSX(path, sheet string, f Formulation) (*demand.ProductData, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open workbook %s", path), err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewDataError(fmt.Sprintf("workbook %s has no sheets", path), nil)
	}

	if sheet == "" {
		sheet = sheets[0]
	} else {
		found := false
		for _, sh := range sheets {
			if strings.EqualFold(sh, sheet) {
				sheet = sh
				found = true
				break
			}
		}
		if !found {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("sheet %q", sheet))
		}
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q from %s", sheet, path), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewDataError(fmt.Sprintf("sheet %q in %s is empty", sheet, path), nil)
	}
	return assembleTable(rows[0], rows[1:], f)
}
