package pagination

import "math"

const (
	// DefaultPerPage is the standard page size when per_page is not provided.
	DefaultPerPage = 20
	// MaxPerPage caps how many records a single page can return.
	MaxPerPage = 100
	// MaxPage keeps Offset within int range at the largest page size.
	MaxPage = math.MaxInt/MaxPerPage + 1
)

// Params holds page-number pagination inputs from controllers or services.
type Params struct {
	Page    int
	PerPage int
}

// Normalize clamps page to [1, MaxPage] and per_page to [1, MaxPerPage].
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset is the index of the first record on the page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// TotalPages returns ceil(total/perPage), zero when there is nothing to page.
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Slice returns the window of items for the page. Pages past the end yield
// an empty, non-nil slice.
func Slice[T any](items []T, p Params) []T {
	n := p.Normalize()
	start := n.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + n.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
