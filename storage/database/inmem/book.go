package inmemdb

import (
	"context"
	"errors"
	"sort"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
)

type bookRepository struct {
	db *DB
}

var _ book.Repository = (*bookRepository)(nil) // interface compliance check

func NewBookRepository(db *DB) book.Repository {
	return &bookRepository{db: db}
}

func (repo *bookRepository) CreateBook(_ context.Context, b book.Book) (book.Book, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.books[b.ID] = &b
	return b, nil
}

func (repo *bookRepository) GetBook(_ context.Context, id string) (book.Book, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.books[id]; ok {
		return *b, nil
	}
	return book.Book{}, book.ErrNotFound
}

func (repo *bookRepository) QueryBooks(_ context.Context, filter book.QueryFilter, page core.Page) ([]book.Book, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	books := make([]book.Book, 0, len(repo.db.books))
	for _, b := range repo.db.books {
		if filter.Matches(*b) {
			books = append(books, *b)
		}
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title == books[j].Title {
			return books[i].ID < books[j].ID
		}
		return books[i].Title < books[j].Title
	})
	return core.PageSlice(books, page), len(books), nil
}

func (repo *bookRepository) UpdateBook(_ context.Context, id string, update func(book.Book) book.Book) (book.Book, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.books[id]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	b := update(*orig)
	b.ID = orig.ID
	b.CreatedAt = orig.CreatedAt
	if b.Quantity < 0 {
		return book.Book{}, core.NewValidationError(errors.New("invalid quantity"), core.FieldError{Field: "quantity", Error: "must be 0 or greater"})
	}
	repo.db.books[id] = &b
	return b, nil
}

func (repo *bookRepository) DeleteBook(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.books[id]; !ok {
		return book.ErrNotFound
	}
	for _, l := range repo.db.loans {
		if l.BookID == id {
			return core.NewRuleError(book.ErrHasLoans)
		}
	}
	delete(repo.db.books, id)
	return nil
}
