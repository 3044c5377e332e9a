package core

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

type (
	DBExecutor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		Close() error
	}
)

var (
	_ DB         = (*sqlx.DB)(nil)
	_ DBExecutor = (*sqlx.Tx)(nil)
)

const (
	DefaultPageSize = 15
	MaxPageSize     = 100
)

// Page selects a 1-indexed window of a query result.
type Page struct {
	Number int `query:"page"`
	Size   int `query:"per_page"`
}

// Clean applies defaults and caps Size at maxSize (MaxPageSize when maxSize <= 0).
func (p Page) Clean(maxSize int) Page {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Paginated is one page of items along with the total count of matching rows.
type Paginated[T any] struct {
	Items []T
	Page  Page
	Total int
}

func NewPaginated[T any](items []T, page Page, total int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{Items: items, Page: page, Total: total}
}

func (p Paginated[T]) LastPage() int {
	if p.Page.Size <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.Page.Size - 1) / p.Page.Size
}

// PageSlice returns the window of items selected by page; used by in-memory stores.
func PageSlice[T any](items []T, page Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
