package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderWithSummaryRow(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(Dataset{
		Columns: []string{"Subject", "Score", "Rank"},
		Rows: []map[string]string{
			{"Subject": "Math", "Score": "55.00", "Rank": "1"},
			{"Subject": "Physics", "Score": "35.00"},
		},
		Summary: map[string]string{"Subject": "TOTAL", "Score": "90.00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Subject,Score,Rank\nMath,55.00,1\nPhysics,35.00,\nTOTAL,90.00,\n", string(out))
}

func TestCSVRenderRequiresColumns(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{Rows: []map[string]string{{"Subject": "Math"}}})
	require.Error(t, err)
}
