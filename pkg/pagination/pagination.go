package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Params holds the page/limit pair read from a query string.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// FromRequest reads page and limit from the query string. Missing values take
// the defaults; non-numeric values are an error. Range checks are left to the
// caller, which knows the row count.
func FromRequest(r *http.Request) (Params, error) {
	p := Params{Page: DefaultPage, Limit: DefaultLimit}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("page must be an integer: %q", raw)
		}
		p.Page = v
	}

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("limit must be an integer: %q", raw)
		}
		p.Limit = v
	}

	return p, nil
}

// Offset is the number of rows skipped before this page.
func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(count/limit), or 0 when limit is not positive.
func TotalPages(count, limit int) int {
	if limit < 1 || count < 1 {
		return 0
	}
	return (count + limit - 1) / limit
}

// ValidPage reports whether page is within 1..max(totalPages, 1).
func ValidPage(page, totalPages int) bool {
	return page >= 1 && page <= max(totalPages, 1)
}

// Neighbors returns the previous and next page numbers around page, nil at
// either edge.
func Neighbors(page, totalPages int) (prev, next *int) {
	if page > 1 {
		p := page - 1
		prev = &p
	}
	if page < totalPages {
		n := page + 1
		next = &n
	}
	return prev, next
}
