package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/circulation"
	"github.com/trezcool/maktaba/core/member"
)

type (
	// DB is a process-local store. A single RWMutex guards every table, so transactions are serialised.
	DB struct {
		sync.RWMutex
		books   map[string]*book.Book
		members map[string]*member.Member
		loans   map[string]*circulation.Loan
	}

	snapshot struct {
		books   map[string]book.Book
		members map[string]member.Member
		loans   map[string]circulation.Loan
	}
)

func Open() *DB {
	return &DB{
		books:   make(map[string]*book.Book),
		members: make(map[string]*member.Member),
		loans:   make(map[string]*circulation.Loan),
	}
}

func (db *DB) snapshot() snapshot {
	s := snapshot{
		books:   make(map[string]book.Book, len(db.books)),
		members: make(map[string]member.Member, len(db.members)),
		loans:   make(map[string]circulation.Loan, len(db.loans)),
	}
	for id, b := range db.books {
		s.books[id] = *b
	}
	for id, m := range db.members {
		s.members[id] = *m
	}
	for id, l := range db.loans {
		s.loans[id] = copyLoan(*l)
	}
	return s
}

func (db *DB) restore(s snapshot) {
	db.books = make(map[string]*book.Book, len(s.books))
	db.members = make(map[string]*member.Member, len(s.members))
	db.loans = make(map[string]*circulation.Loan, len(s.loans))
	for id, b := range s.books {
		b := b
		db.books[id] = &b
	}
	for id, m := range s.members {
		m := m
		db.members[id] = &m
	}
	for id, l := range s.loans {
		l := l
		db.loans[id] = &l
	}
}

// withinTx holds the write lock while fn runs and rolls back all tables if fn fails.
func (db *DB) withinTx(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.Lock()
	defer db.Unlock()

	snap := db.snapshot()
	if err := fn(); err != nil {
		db.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

// Reset empties every table; for tests.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.restore(snapshot{})
}

// copyLoan deep-copies the pointer fields of l so that callers cannot mutate stored rows.
func copyLoan(l circulation.Loan) circulation.Loan {
	if l.ReturnDate != nil {
		rd := *l.ReturnDate
		l.ReturnDate = &rd
	}
	if l.FineAmount != nil {
		fa := *l.FineAmount
		l.FineAmount = &fa
	}
	return l
}
