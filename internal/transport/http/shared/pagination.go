package shared

import (
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePagination reads limit/offset or page/page_size (1-based pages).
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0
	if v, ok := positiveInt(q.Get("page_size")); ok {
		limit = v
	}
	if v, ok := positiveInt(q.Get("limit")); ok {
		limit = v
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if v, ok := positiveInt(q.Get("page")); ok {
		offset = (v - 1) * limit
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return Pagination{Limit: limit, Offset: offset}
}

func positiveInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Page is the list envelope for paginated endpoints.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func NewPage[T any](items []T, total int, p Pagination) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}
}
