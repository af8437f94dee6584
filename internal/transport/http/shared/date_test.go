package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	day, err := ParseDate("2025-02-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), day)

	day, err = ParseDate("2025-02-14T18:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), day)

	day, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, day.IsZero())

	_, err = ParseDate("14/02/2025")
	assert.Error(t, err)
}

func TestValidatorMonth(t *testing.T) {
	v := NewValidator()
	assert.Equal(t, "2025-03", v.Month("month", "2025-03"))
	assert.Equal(t, time.Now().Format("2006-01"), v.Month("month", ""))
	assert.Empty(t, v.Month("month", "2025-13"))
	assert.Len(t, v.issues, 1)
}
