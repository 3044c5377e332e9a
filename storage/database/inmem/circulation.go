package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/circulation"
	"github.com/trezcool/maktaba/core/member"
)

type (
	circulationRepository struct {
		db *DB
	}

	// circulationTx runs with db's write lock already held by withinTx.
	circulationTx struct {
		db *DB
	}
)

var (
	// interface compliance checks
	_ circulation.Repository = (*circulationRepository)(nil)
	_ circulation.Tx         = (*circulationTx)(nil)
)

func NewCirculationRepository(db *DB) circulation.Repository {
	return &circulationRepository{db: db}
}

func (repo *circulationRepository) WithinTx(ctx context.Context, fn func(tx circulation.Tx) error) error {
	return repo.db.withinTx(ctx, func() error {
		return fn(&circulationTx{db: repo.db})
	})
}

func (repo *circulationRepository) QueryLoans(_ context.Context, filter circulation.QueryFilter, page core.Page) ([]circulation.LoanDetail, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	loans := make([]circulation.LoanDetail, 0)
	for _, l := range repo.db.loans {
		if filter.Matches(*l) {
			loans = append(loans, repo.db.loanDetail(*l))
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].IssueDate.Equal(loans[j].IssueDate) {
			return loans[i].ID > loans[j].ID
		}
		return loans[i].IssueDate.After(loans[j].IssueDate)
	})
	return core.PageSlice(loans, page), len(loans), nil
}

func (repo *circulationRepository) GetLoan(_ context.Context, id string) (circulation.LoanDetail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if l, ok := repo.db.loans[id]; ok {
		return repo.db.loanDetail(*l), nil
	}
	return circulation.LoanDetail{}, circulation.ErrNotFound
}

func (repo *circulationRepository) QueryOverdueLoans(_ context.Context, asOf time.Time) ([]circulation.LoanDetail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var loans []circulation.LoanDetail
	for _, l := range repo.db.loans {
		if l.Status == circulation.StatusIssued && l.DueDate.Before(asOf) {
			loans = append(loans, repo.db.loanDetail(*l))
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].DueDate.Equal(loans[j].DueDate) {
			return loans[i].ID < loans[j].ID
		}
		return loans[i].DueDate.Before(loans[j].DueDate)
	})
	return loans, nil
}

// loanDetail must be called with db locked.
func (db *DB) loanDetail(l circulation.Loan) circulation.LoanDetail {
	ld := circulation.LoanDetail{Loan: copyLoan(l)}
	if b, ok := db.books[l.BookID]; ok {
		ld.Book = b.Summary()
	}
	if m, ok := db.members[l.MemberID]; ok {
		ld.Member = m.Summary()
	}
	return ld
}

func (tx *circulationTx) GetBookForUpdate(_ context.Context, id string) (book.Book, error) {
	if b, ok := tx.db.books[id]; ok {
		return *b, nil
	}
	return book.Book{}, book.ErrNotFound
}

func (tx *circulationTx) GetMember(_ context.Context, id string) (member.Member, error) {
	if m, ok := tx.db.members[id]; ok {
		return *m, nil
	}
	return member.Member{}, member.ErrNotFound
}

func (tx *circulationTx) HasOpenLoan(_ context.Context, bookID, memberID string) (bool, error) {
	_, ok := tx.openLoan(bookID, memberID)
	return ok, nil
}

func (tx *circulationTx) openLoan(bookID, memberID string) (*circulation.Loan, bool) {
	for _, l := range tx.db.loans {
		if l.BookID == bookID && l.MemberID == memberID && l.Status == circulation.StatusIssued {
			return l, true
		}
	}
	return nil, false
}

func (tx *circulationTx) GetOpenLoanForUpdate(_ context.Context, bookID, memberID string) (circulation.Loan, error) {
	if l, ok := tx.openLoan(bookID, memberID); ok {
		return copyLoan(*l), nil
	}
	return circulation.Loan{}, circulation.ErrOpenLoanNotFound
}

func (tx *circulationTx) GetLoanForUpdate(_ context.Context, id string) (circulation.Loan, error) {
	if l, ok := tx.db.loans[id]; ok {
		return copyLoan(*l), nil
	}
	return circulation.Loan{}, circulation.ErrNotFound
}

func (tx *circulationTx) CreateLoan(_ context.Context, l circulation.Loan) (circulation.Loan, error) {
	if _, ok := tx.db.books[l.BookID]; !ok {
		return circulation.Loan{}, book.ErrNotFound
	}
	if _, ok := tx.db.members[l.MemberID]; !ok {
		return circulation.Loan{}, member.ErrNotFound
	}
	if l.Status == circulation.StatusIssued {
		if _, ok := tx.openLoan(l.BookID, l.MemberID); ok {
			return circulation.Loan{}, core.NewRuleError(circulation.ErrAlreadyIssued)
		}
	}
	l = copyLoan(l)
	tx.db.loans[l.ID] = &l
	return copyLoan(l), nil
}

func (tx *circulationTx) UpdateLoan(_ context.Context, l circulation.Loan) (circulation.Loan, error) {
	orig, ok := tx.db.loans[l.ID]
	if !ok {
		return circulation.Loan{}, circulation.ErrNotFound
	}
	l.CreatedAt = orig.CreatedAt
	l = copyLoan(l)
	tx.db.loans[l.ID] = &l
	return copyLoan(l), nil
}

func (tx *circulationTx) AdjustBookQuantity(_ context.Context, bookID string, delta int) (book.Book, error) {
	b, ok := tx.db.books[bookID]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	if b.Quantity+delta < 0 {
		return book.Book{}, core.NewRuleError(circulation.ErrBookUnavailable)
	}
	b.Quantity += delta
	return *b, nil
}
