package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/member"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("circulation record not found")
	ErrOpenLoanNotFound  = core.NewNotFoundError("no open loan for this book and member")
	ErrBookUnavailable   = errors.New("book not available")
	ErrAlreadyIssued     = errors.New("member already has this book")
	ErrInvalidTransition = errors.New("circulation record is already closed")
)

type (
	Repository interface {
		// WithinTx runs fn in a single transaction: any error returned by fn rolls back every write made through tx.
		// tx must not be used once fn returns.
		WithinTx(ctx context.Context, fn func(tx Tx) error) error
		QueryLoans(ctx context.Context, filter QueryFilter, page core.Page) ([]LoanDetail, int, error)
		GetLoan(ctx context.Context, id string) (LoanDetail, error)
		// QueryOverdueLoans returns issued loans due before asOf, oldest due date first.
		QueryOverdueLoans(ctx context.Context, asOf time.Time) ([]LoanDetail, error)
	}

	// Tx is the unit of work used by the ledger.
	Tx interface {
		// GetBookForUpdate locks the book row until the transaction ends.
		GetBookForUpdate(ctx context.Context, id string) (book.Book, error)
		GetMember(ctx context.Context, id string) (member.Member, error)
		HasOpenLoan(ctx context.Context, bookID, memberID string) (bool, error)
		// GetOpenLoanForUpdate locks the issued loan of (bookID, memberID); ErrOpenLoanNotFound if there is none.
		GetOpenLoanForUpdate(ctx context.Context, bookID, memberID string) (Loan, error)
		GetLoanForUpdate(ctx context.Context, id string) (Loan, error)
		// CreateLoan returns ErrAlreadyIssued (as a core.RuleError) if an issued loan already exists for the pair.
		CreateLoan(ctx context.Context, l Loan) (Loan, error)
		UpdateLoan(ctx context.Context, l Loan) (Loan, error)
		// AdjustBookQuantity adds delta to the book's quantity and returns the refreshed book.
		AdjustBookQuantity(ctx context.Context, bookID string, delta int) (book.Book, error)
	}

	Service struct {
		repo        Repository
		fines       FinePolicy
		maxPageSize int
		now         func() time.Time
	}

	Option func(*Service)
)

// WithClock replaces time.Now as the source of issue, return and overdue times.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func NewService(repo Repository, conf *core.Config, opts ...Option) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	svc := &Service{
		repo:        repo,
		fines:       NewFinePolicy(conf.Circulation.FinePerDay),
		maxPageSize: conf.Circulation.MaxPageSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *Service) FinePolicy() FinePolicy { return svc.fines }

func (svc *Service) Now() time.Time { return svc.now().UTC() }

// Issue lends one copy of a book to a member.
// Checks, in order: the book exists, the member exists, a copy is on the shelf and the member does not already hold it.
func (svc *Service) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	if !core.IsValidID(req.BookID) {
		return IssueResult{}, book.ErrNotFound
	}
	if !core.IsValidID(req.MemberID) {
		return IssueResult{}, member.ErrNotFound
	}

	var res IssueResult
	err := svc.repo.WithinTx(ctx, func(tx Tx) error {
		b, err := tx.GetBookForUpdate(ctx, req.BookID)
		if err != nil {
			return err
		}
		if _, err = tx.GetMember(ctx, req.MemberID); err != nil {
			return err
		}
		if !b.IsAvailable() {
			return core.NewRuleError(ErrBookUnavailable)
		}
		open, err := tx.HasOpenLoan(ctx, req.BookID, req.MemberID)
		if err != nil {
			return err
		}
		if open {
			return core.NewRuleError(ErrAlreadyIssued)
		}

		now := svc.Now()
		loan, err := tx.CreateLoan(ctx, Loan{
			ID:        core.NewID(),
			BookID:    req.BookID,
			MemberID:  req.MemberID,
			IssueDate: now,
			DueDate:   req.Due.UTC(),
			Status:    StatusIssued,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		if b, err = tx.AdjustBookQuantity(ctx, b.ID, -1); err != nil {
			return err
		}
		res = IssueResult{Loan: loan, Book: b}
		return nil
	})
	if err != nil {
		return IssueResult{}, err
	}
	return res, nil
}

// Return closes the member's open loan of the book, charging a fine if it is overdue.
func (svc *Service) Return(ctx context.Context, req ReturnRequest) (ReturnResult, error) {
	if !core.IsValidID(req.BookID) || !core.IsValidID(req.MemberID) {
		return ReturnResult{}, ErrOpenLoanNotFound
	}

	var res ReturnResult
	err := svc.repo.WithinTx(ctx, func(tx Tx) error {
		loan, err := tx.GetOpenLoanForUpdate(ctx, req.BookID, req.MemberID)
		if err != nil {
			return err
		}
		if err = loan.Status.checkTransition(StatusReturned); err != nil {
			return core.NewRuleError(err)
		}

		now := svc.Now()
		fine := svc.fines.Fine(loan.DueDate, now)
		loan.ReturnDate = &now
		loan.FineAmount = &fine
		loan.Status = StatusReturned
		loan.UpdatedAt = now
		if loan, err = tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		b, err := tx.AdjustBookQuantity(ctx, loan.BookID, 1)
		if err != nil {
			return err
		}
		res = ReturnResult{Loan: loan, Book: b, FineAmount: fine}
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	return res, nil
}

// MarkLost closes an issued loan whose copy will not come back. The book's quantity is left as is.
func (svc *Service) MarkLost(ctx context.Context, loanID string) (Loan, error) {
	if !core.IsValidID(loanID) {
		return Loan{}, ErrNotFound
	}

	var loan Loan
	err := svc.repo.WithinTx(ctx, func(tx Tx) error {
		l, err := tx.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if err = l.Status.checkTransition(StatusLost); err != nil {
			if err == ErrInvalidTransition {
				return core.NewRuleError(err)
			}
			return err
		}
		l.Status = StatusLost
		l.UpdatedAt = svc.Now()
		loan, err = tx.UpdateLoan(ctx, l)
		return err
	})
	if err != nil {
		return Loan{}, err
	}
	return loan, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, page core.Page) (core.Paginated[LoanDetail], error) {
	filter.Clean()
	if err := filter.Validate(); err != nil {
		return core.Paginated[LoanDetail]{}, err
	}
	page = page.Clean(svc.maxPageSize)
	loans, total, err := svc.repo.QueryLoans(ctx, filter, page)
	if err != nil {
		return core.Paginated[LoanDetail]{}, err
	}
	return core.NewPaginated(loans, page, total), nil
}

func (svc *Service) Get(ctx context.Context, id string) (LoanDetail, error) {
	if !core.IsValidID(id) {
		return LoanDetail{}, ErrNotFound
	}
	return svc.repo.GetLoan(ctx, id)
}

// Overdue returns the issued loans that are past their due date now.
func (svc *Service) Overdue(ctx context.Context) ([]LoanDetail, error) {
	return svc.repo.QueryOverdueLoans(ctx, svc.Now())
}
