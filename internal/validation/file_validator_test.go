package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileValidator_ValidateFile(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantErr       bool
		errorContains string
	}{
		{
			name: "readable file",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "products.csv")
				require.NoError(t, os.WriteFile(file, []byte("market,share\n"), 0644))
				return file
			},
			wantErr: false,
		},
		{
			name: "non-existent file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.csv")
			},
			wantErr:       true,
			errorContains: "does not exist",
		},
		{
			name: "path is a directory",
			setupFunc: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr:       true,
			errorContains: "is a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			path := tt.setupFunc(t)

			err := validator.ValidateFile(path)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateCSVFile(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantErr       bool
		errorContains string
	}{
		{
			name: "csv file",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "products.csv")
				require.NoError(t, os.WriteFile(file, []byte("market,share\n"), 0644))
				return file
			},
			wantErr: false,
		},
		{
			name: "wrong extension",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "products.xlsx")
				require.NoError(t, os.WriteFile(file, []byte("data"), 0644))
				return file
			},
			wantErr:       true,
			errorContains: "not a CSV file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			path := tt.setupFunc(t)

			err := validator.ValidateCSVFile(path)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateExcelFile(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantErr       bool
		errorContains string
	}{
		{
			name: "xlsx file",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "products.xlsx")
				require.NoError(t, os.WriteFile(file, []byte("data"), 0644))
				return file
			},
			wantErr: false,
		},
		{
			name: "wrong extension",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "products.csv")
				require.NoError(t, os.WriteFile(file, []byte("data"), 0644))
				return file
			},
			wantErr:       true,
			errorContains: "not an Excel file",
		},
		{
			name: "temporary Excel file",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "~$products.xlsx")
				require.NoError(t, os.WriteFile(file, []byte("data"), 0644))
				return file
			},
			wantErr:       true,
			errorContains: "temporary Excel file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			path := tt.setupFunc(t)

			err := validator.ValidateExcelFile(path)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateDatasetFile(t *testing.T) {
	validator := NewFileValidator(slog.Default())
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "table.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("market,share\n"), 0644))
	assert.NoError(t, validator.ValidateDatasetFile(csvPath))

	// Unknown extensions go down the CSV path, so readability is enough.
	txtPath := filepath.Join(dir, "table.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("market,share\n"), 0644))
	assert.NoError(t, validator.ValidateDatasetFile(txtPath))

	tempBook := filepath.Join(dir, "~$table.xlsx")
	require.NoError(t, os.WriteFile(tempBook, []byte("data"), 0644))
	assert.Error(t, validator.ValidateDatasetFile(tempBook))
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		wantErr   bool
	}{
		{
			name: "existing directory",
			setupFunc: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr: false,
		},
		{
			name: "directory created on demand",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "reports", "nested")
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			dir := tt.setupFunc(t)

			err := validator.ValidateOutputDirectory(dir)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				info, statErr := os.Stat(dir)
				require.NoError(t, statErr)
				assert.True(t, info.IsDir())
			}
		})
	}
}

func TestNewFileValidatorNilLogger(t *testing.T) {
	validator := NewFileValidator(nil)
	assert.NotNil(t, validator.logger)
}
