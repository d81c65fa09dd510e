package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "blpcli/internal/errors"
)

func TestFormulationValidate(t *testing.T) {
	valid := Formulation{
		Market:      "market",
		Share:       "share",
		Linear:      []string{"const", "price"},
		Nonlinear:   []string{"price"},
		Instruments: []string{"const", "z1"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(f *Formulation)
	}{
		{
			name:   "missing market column",
			mutate: func(f *Formulation) { f.Market = "  " },
		},
		{
			name:   "missing share column",
			mutate: func(f *Formulation) { f.Share = "" },
		},
		{
			name:   "market equals share",
			mutate: func(f *Formulation) { f.Share = "Market" },
		},
		{
			name:   "no linear columns",
			mutate: func(f *Formulation) { f.Linear = nil },
		},
		{
			name:   "duplicate linear column",
			mutate: func(f *Formulation) { f.Linear = []string{"price", "Price"} },
		},
		{
			name:   "duplicate instrument column",
			mutate: func(f *Formulation) { f.Instruments = []string{"z1", "z1"} },
		},
		{
			name:   "empty nonlinear name",
			mutate: func(f *Formulation) { f.Nonlinear = []string{"price", " "} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.Validate()
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
		})
	}
}

func TestFormulationValidateMinimal(t *testing.T) {
	f := Formulation{
		Market: "market",
		Share:  "share",
		Linear: []string{"price"},
	}
	require.NoError(t, f.Validate())
}

func TestDefaultFormulation(t *testing.T) {
	f := DefaultFormulation()
	assert.Equal(t, "market", f.Market)
	assert.Equal(t, "share", f.Share)
	assert.Empty(t, f.Linear)
}

func TestParseColumns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple list",
			input:    "const,price,quality",
			expected: []string{"const", "price", "quality"},
		},
		{
			name:     "whitespace trimmed",
			input:    " const , price ",
			expected: []string{"const", "price"},
		},
		{
			name:     "empty entries dropped",
			input:    ",const,,price,",
			expected: []string{"const", "price"},
		},
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseColumns(tt.input))
		})
	}
}
