package book

import (
	"context"
	"errors"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/maktaba/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("book not found")
	ErrHasLoans = errors.New("book has circulation records and cannot be deleted")
)

type (
	Repository interface {
		CreateBook(ctx context.Context, b Book) (Book, error)
		GetBook(ctx context.Context, id string) (Book, error)
		// QueryBooks applies AND operation on available QueryFilter fields and returns the page along with the total count.
		QueryBooks(ctx context.Context, filter QueryFilter, page core.Page) ([]Book, int, error)
		// UpdateBook applies update to the current row of book id and saves it; the read and write are atomic.
		UpdateBook(ctx context.Context, id string, update func(Book) Book) (Book, error)
		DeleteBook(ctx context.Context, id string) error
	}

	Service struct {
		repo        Repository
		maxPageSize int
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{repo: repo, maxPageSize: conf.Circulation.MaxPageSize}
}

func (svc *Service) Create(ctx context.Context, nb NewBook) (Book, error) {
	now := time.Now().UTC()
	return svc.repo.CreateBook(ctx, Book{
		ID:         core.NewID(),
		Title:      nb.Title,
		Author:     nb.Author,
		ISBN:       nb.ISBN,
		Quantity:   nb.Quantity,
		CategoryID: nb.CategoryID,
		Status:     nb.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Book, error) {
	if !core.IsValidID(id) {
		return Book{}, ErrNotFound
	}
	return svc.repo.GetBook(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, page core.Page) (core.Paginated[Book], error) {
	filter.Clean()
	page = page.Clean(svc.maxPageSize)
	books, total, err := svc.repo.QueryBooks(ctx, filter, page)
	if err != nil {
		return core.Paginated[Book]{}, err
	}
	return core.NewPaginated(books, page, total), nil
}

// Update only changes the fields set in ub; orig identifies the book and may be stale.
func (svc *Service) Update(ctx context.Context, orig Book, ub UpdateBook) (Book, error) {
	now := time.Now().UTC()
	return svc.repo.UpdateBook(ctx, orig.ID, func(cur Book) Book {
		b := ub.apply(cur)
		b.UpdatedAt = now
		return b
	})
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if !core.IsValidID(id) {
		return ErrNotFound
	}
	return svc.repo.DeleteBook(ctx, id)
}
