// Package pagination pages lists served by the local API. The storefront
// API returns whole catalog listings, so pages are cut in memory.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params are the page and per_page query parameters.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset is the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads page and per_page, ignoring values that are missing,
// malformed or out of range.
func FromRequest(r *http.Request) Params {
	p := Params{Page: 1, PerPage: DefaultPerPage}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= MaxPerPage {
		p.PerPage = v
	}
	return p
}

// Result is one page of items.
type Result[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Paginate cuts the page described by p out of items. A page past the end
// is empty but still reports the totals.
func Paginate[T any](items []T, p Params) Result[T] {
	total := len(items)
	totalPages := (total + p.PerPage - 1) / p.PerPage

	start := min(p.Offset(), total)
	end := min(start+p.PerPage, total)

	return Result[T]{
		Items:      append(make([]T, 0, end-start), items[start:end]...),
		TotalCount: total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}
