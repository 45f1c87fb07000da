package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}

func TestInitMigrationDeclaresHoldIndex(t *testing.T) {
	data, err := migrationFiles.ReadFile("001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "reservations_one_hold_per_seat")
	assert.Contains(t, string(data), "CHECK (amount >= 0)")
}
