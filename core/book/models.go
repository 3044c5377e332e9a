package book

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/maktaba/core"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var Statuses = []Status{StatusActive, StatusInactive}

type Book struct {
	ID         string    `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Author     string    `json:"author" db:"author"`
	ISBN       string    `json:"isbn" db:"isbn"`
	Quantity   int       `json:"quantity" db:"quantity"` // copies currently on the shelf
	CategoryID string    `json:"category_id" db:"category_id"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (b Book) IsAvailable() bool {
	return b.Quantity > 0
}

// Summary is the subset of a Book embedded in circulation listings.
type Summary struct {
	ID     string `json:"id" db:"id"`
	Title  string `json:"title" db:"title"`
	Author string `json:"author" db:"author"`
	ISBN   string `json:"isbn" db:"isbn"`
}

func (b Book) Summary() Summary {
	return Summary{ID: b.ID, Title: b.Title, Author: b.Author, ISBN: b.ISBN}
}

// NewBook contains information needed to create a new Book.
type NewBook struct {
	Title      string `json:"title" validate:"required,max=255"`
	Author     string `json:"author" validate:"required,max=255"`
	ISBN       string `json:"isbn" validate:"omitempty,isbn"`
	Quantity   int    `json:"quantity" validate:"gte=0"`
	CategoryID string `json:"category_id" validate:"omitempty,max=64"`
	Status     Status `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (nb *NewBook) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	nb.Author = core.CleanString(nb.Author)
	nb.ISBN = CleanISBN(nb.ISBN)
	nb.CategoryID = core.CleanString(nb.CategoryID)
	nb.Status = Status(core.CleanString(string(nb.Status), true /* lower */))
	if nb.Status == "" {
		nb.Status = StatusActive
	}
	return validate.Struct(nb)
}

// UpdateBook defines what information may be provided to modify an existing Book.
// Empty strings and nil pointers leave the original value untouched.
type UpdateBook struct {
	Title      string `json:"title" validate:"omitempty,max=255"`
	Author     string `json:"author" validate:"omitempty,max=255"`
	ISBN       string `json:"isbn" validate:"omitempty,isbn"`
	Quantity   *int   `json:"quantity" validate:"omitempty,gte=0"`
	CategoryID string `json:"category_id" validate:"omitempty,max=64"`
	Status     Status `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (ub *UpdateBook) Validate(validate *validator.Validate) error {
	ub.Title = core.CleanString(ub.Title)
	ub.Author = core.CleanString(ub.Author)
	ub.ISBN = CleanISBN(ub.ISBN)
	ub.CategoryID = core.CleanString(ub.CategoryID)
	ub.Status = Status(core.CleanString(string(ub.Status), true /* lower */))
	return validate.Struct(ub)
}

// apply returns a copy of orig with the set fields of ub.
func (ub UpdateBook) apply(orig Book) Book {
	if ub.Title != "" {
		orig.Title = ub.Title
	}
	if ub.Author != "" {
		orig.Author = ub.Author
	}
	if ub.ISBN != "" {
		orig.ISBN = ub.ISBN
	}
	if ub.Quantity != nil {
		orig.Quantity = *ub.Quantity
	}
	if ub.CategoryID != "" {
		orig.CategoryID = ub.CategoryID
	}
	if ub.Status != "" {
		orig.Status = ub.Status
	}
	return orig
}

type QueryFilter struct {
	Search     string `query:"search"`
	Status     Status `query:"status"`
	CategoryID string `query:"category_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
	qf.CategoryID = core.CleanString(qf.CategoryID)
}

// Matches reports whether b satisfies the filter; used by in-memory stores.
// Search does a case-insensitive match on one of Title, Author or ISBN.
func (qf QueryFilter) Matches(b Book) bool {
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(b.Title), s) ||
			strings.Contains(strings.ToLower(b.Author), s) ||
			strings.Contains(strings.ToLower(b.ISBN), s)) {
			return false
		}
	}
	if qf.Status != "" && b.Status != qf.Status {
		return false
	}
	if qf.CategoryID != "" && b.CategoryID != qf.CategoryID {
		return false
	}
	return true
}

// CleanISBN strips the hyphens and spaces commonly used to group ISBN digits.
func CleanISBN(isbn string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn)))
}
