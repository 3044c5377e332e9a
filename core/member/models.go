package member

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/maktaba/core"
)

// Type tells whether a Member is a student or a staff member.
type Type string

const (
	TypeStudent Type = "student"
	TypeStaff   Type = "staff"
)

var Types = []Type{TypeStudent, TypeStaff}

type Member struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	Type        Type      `json:"member_type" db:"member_type"`
	ReferenceNo string    `json:"reference_no" db:"reference_no"` // student or staff number
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// Summary is the subset of a Member embedded in circulation listings.
type Summary struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Type  Type   `json:"member_type" db:"member_type"`
}

func (m Member) Summary() Summary {
	return Summary{ID: m.ID, Name: m.Name, Email: m.Email, Type: m.Type}
}

// NewMember contains information needed to register a new Member.
type NewMember struct {
	Name        string `json:"name" validate:"required,max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	Type        Type   `json:"member_type" validate:"required,oneof=student staff"`
	ReferenceNo string `json:"reference_no" validate:"omitempty,max=64,printascii"`
}

func (nm *NewMember) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Type = Type(core.CleanString(string(nm.Type), true /* lower */))
	nm.ReferenceNo = core.CleanString(nm.ReferenceNo)
	return validate.Struct(nm)
}

// UpdateMember defines what information may be provided to modify an existing Member.
type UpdateMember struct {
	Name        string `json:"name" validate:"omitempty,max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	Type        Type   `json:"member_type" validate:"omitempty,oneof=student staff"`
	ReferenceNo string `json:"reference_no" validate:"omitempty,max=64,printascii"`
	IsActive    *bool  `json:"is_active"`
}

func (um *UpdateMember) Validate(validate *validator.Validate) error {
	um.Name = core.CleanString(um.Name)
	um.Email = core.CleanString(um.Email, true /* lower */)
	um.Type = Type(core.CleanString(string(um.Type), true /* lower */))
	um.ReferenceNo = core.CleanString(um.ReferenceNo)
	return validate.Struct(um)
}

func (um UpdateMember) apply(orig Member) Member {
	if um.Name != "" {
		orig.Name = um.Name
	}
	if um.Email != "" {
		orig.Email = um.Email
	}
	if um.Type != "" {
		orig.Type = um.Type
	}
	if um.ReferenceNo != "" {
		orig.ReferenceNo = um.ReferenceNo
	}
	if um.IsActive != nil {
		orig.IsActive = *um.IsActive
	}
	return orig
}

type QueryFilter struct {
	Search   string `query:"search"`
	Type     Type   `query:"member_type"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Type = Type(core.CleanString(string(qf.Type), true /* lower */))
}

// Matches reports whether m satisfies the filter; used by in-memory stores.
// Search does a case-insensitive match on one of Name, Email or ReferenceNo.
func (qf QueryFilter) Matches(m Member) bool {
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(m.Name), s) ||
			strings.Contains(strings.ToLower(m.Email), s) ||
			strings.Contains(strings.ToLower(m.ReferenceNo), s)) {
			return false
		}
	}
	if qf.Type != "" && m.Type != qf.Type {
		return false
	}
	if qf.IsActive != nil && m.IsActive != *qf.IsActive {
		return false
	}
	return true
}
