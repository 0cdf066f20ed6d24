package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnearn/hub/core/earn"
)

func TestWritePayments(t *testing.T) {
	payments := []earn.Payment{
		{ID: "p1", User: &earn.Payee{Name: "Achieng", Email: "achieng@example.com"}, Amount: "1500", Date: "2024-03-01T10:00:00.000Z", Status: "paid"},
		{ID: "p2", Amount: "200"},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePayments(&buf, payments))

	rows, err := ReadPayments(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Achieng", "achieng@example.com", "1500", "2024-03-01", "paid"}, rows[0])
	assert.Equal(t, "Unknown", rows[1][0])
	assert.Equal(t, "200", rows[1][2])
	assert.Equal(t, "N/A", rows[1][3])
	assert.Equal(t, earn.StatusPending, rows[1][4])
}

func TestWritePayments_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePayments(&buf, nil))

	rows, err := ReadPayments(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
