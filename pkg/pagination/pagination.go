// Package pagination pages in-memory result lists by limit and offset query
// parameters.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const MaxLimit = 1000

// Params holds pagination parameters extracted from a request. A zero Limit
// means every item from Offset on.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
// Missing or malformed values fall back to the defaults.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 0 {
		limit = 0
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Page describes the window returned to the client.
type Page struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit,omitempty"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Apply returns the window of items selected by p together with its page
// description.
func Apply[T any](items []T, p Params) ([]T, Page) {
	total := len(items)
	page := Page{Total: total, Limit: p.Limit, Offset: p.Offset}

	start := p.Offset
	if start > total {
		start = total
	}
	end := total
	if p.Limit > 0 && start+p.Limit < total {
		end = start + p.Limit
	}
	page.HasMore = end < total
	return items[start:end], page
}
