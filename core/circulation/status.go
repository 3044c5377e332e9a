package circulation

import (
	"database/sql/driver"
	"strings"

	"github.com/pkg/errors"
)

// Status is the lifecycle state of a Loan.
//
//	issued ──Return──▶ returned
//	   └────MarkLost──▶ lost
//
// returned and lost are terminal; borrowing again creates a new Loan.
type Status int

const (
	StatusIssued Status = iota + 1
	StatusReturned
	StatusLost
)

var Statuses = []Status{StatusIssued, StatusReturned, StatusLost}

func (s Status) String() string {
	switch s {
	case StatusIssued:
		return "issued"
	case StatusReturned:
		return "returned"
	case StatusLost:
		return "lost"
	default:
		return "unknown"
	}
}

func (s Status) IsValid() bool {
	switch s {
	case StatusIssued, StatusReturned, StatusLost:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusReturned, StatusLost:
		return true
	default:
		return false
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "issued":
		return StatusIssued, nil
	case "returned":
		return StatusReturned, nil
	case "lost":
		return StatusLost, nil
	default:
		return 0, errors.Errorf("invalid loan status %q", s)
	}
}

// checkTransition returns ErrInvalidTransition unless a Loan in status s may move to next.
func (s Status) checkTransition(next Status) error {
	switch s {
	case StatusIssued:
		switch next {
		case StatusReturned, StatusLost:
			return nil
		case StatusIssued:
			return ErrInvalidTransition
		default:
			return errors.Errorf("unknown loan status %d", next)
		}
	case StatusReturned, StatusLost:
		return ErrInvalidTransition
	default:
		return errors.Errorf("unknown loan status %d", s)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, errors.Errorf("unknown loan status %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// UnmarshalParam lets echo bind a Status from query parameters; an empty value means any status (0).
func (s *Status) UnmarshalParam(param string) error {
	if strings.TrimSpace(param) == "" {
		*s = 0
		return nil
	}
	return s.UnmarshalText([]byte(param))
}

func (s Status) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, errors.Errorf("unknown loan status %d", s)
	}
	return s.String(), nil
}

func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return errors.Errorf("cannot scan %T into loan status", src)
	}
}
