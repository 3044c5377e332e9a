package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/member"
	"github.com/trezcool/maktaba/storage/database"
)

// NewConfig returns the configuration used by tests: TEST env, no Redis, default fine policy.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Redis.Address = ""
	return conf
}

func CreateBook(t *testing.T, repo book.Repository, title string, quantity int, createdAt ...time.Time) book.Book {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	b, err := repo.CreateBook(context.Background(), book.Book{
		ID:        core.NewID(),
		Title:     title,
		Author:    "Ngũgĩ wa Thiong'o",
		Quantity:  quantity,
		Status:    book.StatusActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateBook() failed: %v", err)
	}
	return b
}

func CreateMember(t *testing.T, repo member.Repository, name string, typ member.Type, createdAt ...time.Time) member.Member {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	m, err := repo.CreateMember(context.Background(), member.Member{
		ID:        core.NewID(),
		Name:      name,
		Type:      typ,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	return m
}

// PrepareDB connects to TEST_DATABASE_URL, applies the migrations and empties every table.
// The test is skipped when TEST_DATABASE_URL is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := database.OpenURL(dbURL)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = database.Ping(ctx, db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.ExecContext(ctx, "TRUNCATE loans, books, members"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}
