package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/circulation"
	"github.com/trezcool/maktaba/core/member"
)

const (
	loanColumns = "id, book_id, member_id, issue_date, due_date, return_date, fine_amount, status, created_at, updated_at"

	loanDetailSelect = `SELECT l.id, l.book_id, l.member_id, l.issue_date, l.due_date, l.return_date, l.fine_amount,
			l.status, l.created_at, l.updated_at,
			b.title AS book_title, b.author AS book_author, b.isbn AS book_isbn,
			m.name AS member_name, m.email AS member_email, m.member_type AS member_type
		FROM loans l
		JOIN books b ON b.id = l.book_id
		JOIN members m ON m.id = l.member_id`
)

type (
	loanRow struct {
		ID         string             `db:"id"`
		BookID     string             `db:"book_id"`
		MemberID   string             `db:"member_id"`
		IssueDate  time.Time          `db:"issue_date"`
		DueDate    time.Time          `db:"due_date"`
		ReturnDate null.Time          `db:"return_date"`
		FineAmount null.Int64         `db:"fine_amount"`
		Status     circulation.Status `db:"status"`
		CreatedAt  time.Time          `db:"created_at"`
		UpdatedAt  time.Time          `db:"updated_at"`
	}

	loanDetailRow struct {
		loanRow
		BookTitle   string      `db:"book_title"`
		BookAuthor  string      `db:"book_author"`
		BookISBN    string      `db:"book_isbn"`
		MemberName  string      `db:"member_name"`
		MemberEmail string      `db:"member_email"`
		MemberType  member.Type `db:"member_type"`
	}
)

func newLoanRow(l circulation.Loan) loanRow {
	return loanRow{
		ID:         l.ID,
		BookID:     l.BookID,
		MemberID:   l.MemberID,
		IssueDate:  l.IssueDate,
		DueDate:    l.DueDate,
		ReturnDate: null.TimeFromPtr(l.ReturnDate),
		FineAmount: null.Int64FromPtr(l.FineAmount),
		Status:     l.Status,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func (r loanRow) toLoan() circulation.Loan {
	l := circulation.Loan{
		ID:         r.ID,
		BookID:     r.BookID,
		MemberID:   r.MemberID,
		IssueDate:  r.IssueDate.UTC(),
		DueDate:    r.DueDate.UTC(),
		FineAmount: r.FineAmount.Ptr(),
		Status:     r.Status,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.ReturnDate.Valid {
		rd := r.ReturnDate.Time.UTC()
		l.ReturnDate = &rd
	}
	return l
}

func (r loanDetailRow) toLoanDetail() circulation.LoanDetail {
	return circulation.LoanDetail{
		Loan:   r.toLoan(),
		Book:   book.Summary{ID: r.BookID, Title: r.BookTitle, Author: r.BookAuthor, ISBN: r.BookISBN},
		Member: member.Summary{ID: r.MemberID, Name: r.MemberName, Email: r.MemberEmail, Type: r.MemberType},
	}
}

type circulationRepository struct {
	db core.DB
}

var _ circulation.Repository = (*circulationRepository)(nil) // interface compliance check

func NewCirculationRepository(db core.DB) circulation.Repository {
	return &circulationRepository{db: db}
}

func (repo *circulationRepository) WithinTx(ctx context.Context, fn func(tx circulation.Tx) error) error {
	sqlTx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&circulationTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (repo *circulationRepository) QueryLoans(ctx context.Context, filter circulation.QueryFilter, page core.Page) ([]circulation.LoanDetail, int, error) {
	var where conditions
	if filter.Status != 0 {
		where.add("l.status = ?", filter.Status)
	}
	if filter.MemberID != "" {
		where.add("l.member_id = ?", filter.MemberID)
	}
	if filter.BookID != "" {
		where.add("l.book_id = ?", filter.BookID)
	}

	var total int
	q := repo.db.Rebind("SELECT COUNT(*) FROM loans l" + where.String())
	if err := repo.db.GetContext(ctx, &total, q, where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting loans")
	}

	q, args := paginate(loanDetailSelect+where.String()+" ORDER BY l.issue_date DESC, l.id DESC", where.args, page)
	var rows []loanDetailRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting loans")
	}
	return toLoanDetails(rows), total, nil
}

func (repo *circulationRepository) GetLoan(ctx context.Context, id string) (circulation.LoanDetail, error) {
	var row loanDetailRow
	if err := repo.db.GetContext(ctx, &row, loanDetailSelect+" WHERE l.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return circulation.LoanDetail{}, circulation.ErrNotFound
		}
		return circulation.LoanDetail{}, errors.Wrap(err, "selecting loan")
	}
	return row.toLoanDetail(), nil
}

func (repo *circulationRepository) QueryOverdueLoans(ctx context.Context, asOf time.Time) ([]circulation.LoanDetail, error) {
	q := loanDetailSelect + " WHERE l.status = $1 AND l.due_date < $2 ORDER BY l.due_date ASC, l.id ASC"
	var rows []loanDetailRow
	if err := repo.db.SelectContext(ctx, &rows, q, circulation.StatusIssued, asOf); err != nil {
		return nil, errors.Wrap(err, "selecting overdue loans")
	}
	return toLoanDetails(rows), nil
}

func toLoanDetails(rows []loanDetailRow) []circulation.LoanDetail {
	loans := make([]circulation.LoanDetail, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.toLoanDetail())
	}
	return loans
}

type circulationTx struct {
	tx *sqlx.Tx
}

var _ circulation.Tx = (*circulationTx)(nil) // interface compliance check

func (t *circulationTx) GetBookForUpdate(ctx context.Context, id string) (book.Book, error) {
	return getBook(ctx, t.tx, id, true /* forUpdate */)
}

func (t *circulationTx) GetMember(ctx context.Context, id string) (member.Member, error) {
	return getMember(ctx, t.tx, id)
}

func (t *circulationTx) HasOpenLoan(ctx context.Context, bookID, memberID string) (bool, error) {
	var open bool
	q := "SELECT EXISTS(SELECT 1 FROM loans WHERE book_id = $1 AND member_id = $2 AND status = $3)"
	if err := t.tx.GetContext(ctx, &open, q, bookID, memberID, circulation.StatusIssued); err != nil {
		return false, errors.Wrap(err, "checking open loan")
	}
	return open, nil
}

func (t *circulationTx) GetOpenLoanForUpdate(ctx context.Context, bookID, memberID string) (circulation.Loan, error) {
	q := "SELECT " + loanColumns + " FROM loans WHERE book_id = $1 AND member_id = $2 AND status = $3 FOR UPDATE"
	return t.getLoan(ctx, circulation.ErrOpenLoanNotFound, q, bookID, memberID, circulation.StatusIssued)
}

func (t *circulationTx) GetLoanForUpdate(ctx context.Context, id string) (circulation.Loan, error) {
	q := "SELECT " + loanColumns + " FROM loans WHERE id = $1 FOR UPDATE"
	return t.getLoan(ctx, circulation.ErrNotFound, q, id)
}

func (t *circulationTx) getLoan(ctx context.Context, notFound error, q string, args ...interface{}) (circulation.Loan, error) {
	var row loanRow
	if err := t.tx.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return circulation.Loan{}, notFound
		}
		return circulation.Loan{}, errors.Wrap(err, "selecting loan")
	}
	return row.toLoan(), nil
}

func (t *circulationTx) CreateLoan(ctx context.Context, l circulation.Loan) (circulation.Loan, error) {
	q := `INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :book_id, :member_id, :issue_date, :due_date, :return_date, :fine_amount, :status, :created_at, :updated_at)`
	if _, err := sqlxNamedExec(ctx, t.tx, q, newLoanRow(l)); err != nil {
		switch pqErrorCode(err) {
		case pqUniqueViolation:
			return circulation.Loan{}, core.NewRuleError(circulation.ErrAlreadyIssued)
		case pqForeignKeyViolation:
			if strings.Contains(pqConstraint(err), "member") {
				return circulation.Loan{}, member.ErrNotFound
			}
			return circulation.Loan{}, book.ErrNotFound
		}
		return circulation.Loan{}, errors.Wrap(err, "inserting loan")
	}
	return l, nil
}

func (t *circulationTx) UpdateLoan(ctx context.Context, l circulation.Loan) (circulation.Loan, error) {
	q := `UPDATE loans
		SET return_date = :return_date, fine_amount = :fine_amount, status = :status, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlxNamedExec(ctx, t.tx, q, newLoanRow(l))
	if err != nil {
		if pqErrorCode(err) == pqUniqueViolation {
			return circulation.Loan{}, core.NewRuleError(circulation.ErrAlreadyIssued)
		}
		return circulation.Loan{}, errors.Wrap(err, "updating loan")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return circulation.Loan{}, circulation.ErrNotFound
	}
	return t.getLoan(ctx, circulation.ErrNotFound, "SELECT "+loanColumns+" FROM loans WHERE id = $1", l.ID)
}

func (t *circulationTx) AdjustBookQuantity(ctx context.Context, bookID string, delta int) (book.Book, error) {
	q := "UPDATE books SET quantity = quantity + $1 WHERE id = $2 RETURNING " + bookColumns
	var b book.Book
	if err := t.tx.GetContext(ctx, &b, q, delta, bookID); err != nil {
		if err == sql.ErrNoRows {
			return book.Book{}, book.ErrNotFound
		}
		if pqErrorCode(err) == pqCheckViolation {
			return book.Book{}, core.NewRuleError(circulation.ErrBookUnavailable)
		}
		return book.Book{}, errors.Wrap(err, "updating book quantity")
	}
	return b, nil
}

// pqConstraint returns the name of the constraint a Postgres error is about.
func pqConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
