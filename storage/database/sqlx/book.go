package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
)

const bookColumns = "id, title, author, isbn, quantity, category_id, status, created_at, updated_at"

type bookRepository struct {
	db core.DB
}

var _ book.Repository = (*bookRepository)(nil) // interface compliance check

func NewBookRepository(db core.DB) book.Repository {
	return &bookRepository{db: db}
}

func (repo *bookRepository) CreateBook(ctx context.Context, b book.Book) (book.Book, error) {
	q := `INSERT INTO books (` + bookColumns + `)
		VALUES (:id, :title, :author, :isbn, :quantity, :category_id, :status, :created_at, :updated_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, b); err != nil {
		return book.Book{}, errors.Wrap(err, "inserting book")
	}
	return b, nil
}

func (repo *bookRepository) GetBook(ctx context.Context, id string) (book.Book, error) {
	return getBook(ctx, repo.db, id, false)
}

func getBook(ctx context.Context, db core.DBExecutor, id string, forUpdate bool) (book.Book, error) {
	q := "SELECT " + bookColumns + " FROM books WHERE id = $1"
	if forUpdate {
		q += " FOR UPDATE"
	}
	var b book.Book
	if err := db.GetContext(ctx, &b, q, id); err != nil {
		if err == sql.ErrNoRows {
			return book.Book{}, book.ErrNotFound
		}
		return book.Book{}, errors.Wrap(err, "selecting book")
	}
	return b, nil
}

func (repo *bookRepository) QueryBooks(ctx context.Context, filter book.QueryFilter, page core.Page) ([]book.Book, int, error) {
	var where conditions
	if filter.Search != "" {
		s := likePattern(filter.Search)
		where.add("(title ILIKE ? OR author ILIKE ? OR isbn ILIKE ?)", s, s, s)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.CategoryID != "" {
		where.add("category_id = ?", filter.CategoryID)
	}

	var total int
	q := repo.db.Rebind("SELECT COUNT(*) FROM books" + where.String())
	if err := repo.db.GetContext(ctx, &total, q, where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting books")
	}

	q, args := paginate("SELECT "+bookColumns+" FROM books"+where.String()+" ORDER BY title ASC, id ASC", where.args, page)
	books := make([]book.Book, 0, page.Size)
	if err := repo.db.SelectContext(ctx, &books, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting books")
	}
	return books, total, nil
}

func (repo *bookRepository) UpdateBook(ctx context.Context, id string, update func(book.Book) book.Book) (book.Book, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return book.Book{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	orig, err := getBook(ctx, tx, id, true)
	if err != nil {
		return book.Book{}, err
	}
	b := update(orig)
	b.ID = orig.ID

	q := `UPDATE books
		SET title = :title, author = :author, isbn = :isbn, quantity = :quantity,
			category_id = :category_id, status = :status, updated_at = :updated_at
		WHERE id = :id`
	if _, err = sqlxNamedExec(ctx, tx, q, b); err != nil {
		if pqErrorCode(err) == pqCheckViolation {
			return book.Book{}, core.NewValidationError(err, core.FieldError{Field: "quantity", Error: "must be 0 or greater"})
		}
		return book.Book{}, errors.Wrap(err, "updating book")
	}
	if b, err = getBook(ctx, tx, id, false); err != nil {
		return book.Book{}, err
	}
	if err = tx.Commit(); err != nil {
		return book.Book{}, errors.Wrap(err, "committing transaction")
	}
	return b, nil
}

func (repo *bookRepository) DeleteBook(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM books WHERE id = $1", id)
	if err != nil {
		if pqErrorCode(err) == pqForeignKeyViolation {
			return core.NewRuleError(book.ErrHasLoans)
		}
		return errors.Wrap(err, "deleting book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return book.ErrNotFound
	}
	return nil
}
