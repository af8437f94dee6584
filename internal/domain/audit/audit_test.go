package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildBaseQueryNumbersFilters(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{EntityType: "payroll_period", EntityID: "p1"})
	assert.Equal(t, "SELECT COUNT(1) FROM audit_logs WHERE true AND entity_type = $1 AND entity_id = $2", query)
	assert.Equal(t, []any{"payroll_period", "p1"}, args)

	query, args = buildBaseQuery("SELECT id", Filter{})
	assert.Equal(t, "SELECT id FROM audit_logs WHERE true", query)
	assert.Empty(t, args)
}

func TestMarshalOptional(t *testing.T) {
	raw, err := marshalOptional(nil)
	assert.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = marshalOptional(map[string]string{"status": "approved"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"status":"approved"}`, string(raw))
}

func TestNilServiceRecordIsNoop(t *testing.T) {
	var s *Service
	assert.NoError(t, s.RecordWith(t.Context(), nil, Entry{Action: "x"}))
}
