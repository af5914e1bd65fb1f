package domain

import "math"

// MaxPage bounds page numbers so Skip cannot overflow.
const MaxPage = math.MaxInt32

type Pagination struct {
	Page     int
	PageSize int
}

func NewPagination(page, size int) Pagination {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size < 1 {
		size = 10
	}
	return Pagination{Page: page, PageSize: size}
}

func (p Pagination) Skip() int64 {
	return int64(p.Page-1) * int64(p.PageSize)
}

func (p Pagination) Limit() int64 {
	return int64(p.PageSize)
}

// TotalPages is ceil(total / size).
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

type Page[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
}

func NewPage[T any](items []T, total int64, p Pagination) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		Total:       total,
		TotalPages:  TotalPages(total, p.PageSize),
		CurrentPage: p.Page,
	}
}
