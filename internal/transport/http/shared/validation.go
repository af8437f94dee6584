package shared

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"time"

	"schoolerp/internal/platform/validate"
	"schoolerp/internal/transport/http/api"
)

type ValidationIssue = validate.Issue

// Validator collects query and payload problems so a handler can report all
// of them in one 400 response.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

// Enum accepts an empty value or one of allowed, ignoring case.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if !slices.ContainsFunc(allowed, func(candidate string) bool { return strings.EqualFold(candidate, value) }) {
		v.Add(field, reason)
	}
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(strings.TrimSpace(raw))
	if err != nil || parsed.IsZero() {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

// DateOrder flags both fields when end precedes start. Zero dates were
// already reported by Date and are skipped.
func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return
	}
	v.Add(startField, "must be on or before "+endField)
	v.Add(endField, "must be on or after "+startField)
}

// Struct runs tag validation on payload and collects its issues.
func (v *Validator) Struct(payload any) {
	for _, issue := range validate.Struct(payload) {
		v.Add(issue.Field, issue.Reason)
	}
}

// Reject writes the collected issues, ordered by field, and reports whether
// it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if v == nil || len(v.issues) == 0 {
		return false
	}
	issues := slices.Clone(v.issues)
	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Reason, b.Reason))
	})
	FailValidation(w, requestID, issues)
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
