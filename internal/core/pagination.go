package core

import "math"

// Pagination describes one page of a listing. Pages is ceil(Total/Limit).
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NewPagination computes the page count for total items at limit per page.
func NewPagination(total int64, page, limit int) Pagination {
	return Pagination{
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: PageCount(total, limit),
	}
}

// PageCount returns ceil(total/limit), or 0 when limit is not positive.
func PageCount(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Offset returns the number of items preceding page. Pages too large for
// the offset to fit in an int64 map to math.MaxInt64.
func Offset(page, limit int) int64 {
	if page < 1 || limit < 1 {
		return 0
	}
	if int64(page-1) > math.MaxInt64/int64(limit) {
		return math.MaxInt64
	}
	return int64(page-1) * int64(limit)
}

// PageParams bounds client supplied paging values.
type PageParams struct {
	DefaultLimit int
	MaxLimit     int
}

// Normalize clamps page to at least 1 and limit to 1..MaxLimit, using
// DefaultLimit when limit is not positive. Page is capped so that its
// offset still fits in an int64; such a page is past the end of any listing.
func (p PageParams) Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = p.DefaultLimit
		if limit < 1 {
			limit = 10
		}
	}
	if p.MaxLimit > 0 && limit > p.MaxLimit {
		limit = p.MaxLimit
	}
	if maxPage := math.MaxInt64/int64(limit) + 1; int64(page) > maxPage {
		page = int(maxPage)
	}
	return page, limit
}
