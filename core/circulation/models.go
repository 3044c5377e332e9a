package circulation

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/member"
)

// Loan is a circulation record: one copy of a Book lent to a Member.
type Loan struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	MemberID   string     `json:"member_id"`
	IssueDate  time.Time  `json:"issue_date"` // UTC
	DueDate    time.Time  `json:"due_date"`   // UTC
	ReturnDate *time.Time `json:"return_date"`
	FineAmount *int64     `json:"fine_amount"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LoanDetail is a Loan joined with its Book and Member.
type LoanDetail struct {
	Loan
	Book   book.Summary   `json:"book"`
	Member member.Summary `json:"member"`
}

type IssueRequest struct {
	BookID   string `json:"book_id" form:"book_id" validate:"required"`
	MemberID string `json:"member_id" form:"member_id" validate:"required"`
	DueDate  string `json:"due_date" form:"due_date" validate:"required"`

	Due time.Time `json:"-"` // parsed DueDate
}

func (ir *IssueRequest) Validate(validate *validator.Validate) error {
	ir.BookID = core.CleanString(ir.BookID, true /* lower */)
	ir.MemberID = core.CleanString(ir.MemberID, true /* lower */)
	ir.DueDate = core.CleanString(ir.DueDate)

	if err := validate.Struct(ir); err != nil {
		return err
	}
	due, err := core.ParseDate(ir.DueDate)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "due_date", Error: "must be a date (YYYY-MM-DD) or an RFC3339 timestamp"})
	}
	ir.Due = due
	return nil
}

type IssueResult struct {
	Loan Loan      `json:"issue"`
	Book book.Book `json:"book"`
}

type ReturnRequest struct {
	BookID   string `json:"book_id" form:"book_id" validate:"required"`
	MemberID string `json:"member_id" form:"member_id" validate:"required"`
}

func (rr *ReturnRequest) Validate(validate *validator.Validate) error {
	rr.BookID = core.CleanString(rr.BookID, true /* lower */)
	rr.MemberID = core.CleanString(rr.MemberID, true /* lower */)
	return validate.Struct(rr)
}

type ReturnResult struct {
	Loan       Loan      `json:"issue"`
	Book       book.Book `json:"book"`
	FineAmount int64     `json:"fine_amount"`
}

type QueryFilter struct {
	Status   Status `query:"status"` // 0: any
	MemberID string `query:"member_id"`
	BookID   string `query:"book_id"`
}

func (qf *QueryFilter) Clean() {
	qf.MemberID = core.CleanString(qf.MemberID, true /* lower */)
	qf.BookID = core.CleanString(qf.BookID, true /* lower */)
}

func (qf QueryFilter) Validate() error {
	var flds []core.FieldError
	if qf.Status != 0 && !qf.Status.IsValid() {
		flds = append(flds, core.FieldError{Field: "status", Error: "must be one of issued, returned, lost"})
	}
	if qf.MemberID != "" && !core.IsValidID(qf.MemberID) {
		flds = append(flds, core.FieldError{Field: "member_id", Error: "invalid id"})
	}
	if qf.BookID != "" && !core.IsValidID(qf.BookID) {
		flds = append(flds, core.FieldError{Field: "book_id", Error: "invalid id"})
	}
	if flds != nil {
		return core.NewValidationError(errors.New("invalid filter"), flds...)
	}
	return nil
}

// Matches reports whether l satisfies the filter; used by in-memory stores.
func (qf QueryFilter) Matches(l Loan) bool {
	if qf.Status != 0 && l.Status != qf.Status {
		return false
	}
	if qf.MemberID != "" && l.MemberID != qf.MemberID {
		return false
	}
	if qf.BookID != "" && l.BookID != qf.BookID {
		return false
	}
	return true
}
