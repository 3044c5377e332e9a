package book_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/circulation"
	"github.com/trezcool/maktaba/core/member"
	inmemdb "github.com/trezcool/maktaba/storage/database/inmem"
	testutil "github.com/trezcool/maktaba/tests"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

func TestNewBook_Validate(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name       string
		nb         book.NewBook
		wantFields []string
	}{
		{name: "missing fields", nb: book.NewBook{}, wantFields: []string{"title", "author"}},
		{name: "negative quantity", nb: book.NewBook{Title: "T", Author: "A", Quantity: -1}, wantFields: []string{"quantity"}},
		{name: "bad isbn", nb: book.NewBook{Title: "T", Author: "A", ISBN: "978-0-306-40615-8"}, wantFields: []string{"isbn"}},
		{name: "bad status", nb: book.NewBook{Title: "T", Author: "A", Status: "archived"}, wantFields: []string{"status"}},
		{name: "valid", nb: book.NewBook{Title: " The River Between ", Author: "Ngũgĩ", ISBN: "978-0-306-40615-7", Quantity: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nb.Validate(validate)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			if assert.ErrorAs(t, err, &verrs) {
				got := make([]string, 0, len(verrs))
				for _, fe := range verrs {
					got = append(got, fe.Field())
				}
				assert.ElementsMatch(t, tt.wantFields, got)
			}
		})
	}

	nb := book.NewBook{Title: " The River Between ", Author: "Ngũgĩ", ISBN: " 978-0-306-40615-7 "}
	require.NoError(t, nb.Validate(validate))
	assert.Equal(t, "The River Between", nb.Title)
	assert.Equal(t, "9780306406157", nb.ISBN)
	assert.Equal(t, book.StatusActive, nb.Status)
}

func TestService(t *testing.T) {
	db := inmemdb.Open()
	conf := testutil.NewConfig(t)
	svc := book.NewService(inmemdb.NewBookRepository(db), conf)
	ctx := context.Background()

	created, err := svc.Create(ctx, book.NewBook{Title: "Weep Not, Child", Author: "Ngũgĩ wa Thiong'o", Quantity: 2, Status: book.StatusActive})
	require.NoError(t, err)
	assert.True(t, core.IsValidID(created.ID))
	assert.Equal(t, 2, created.Quantity)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = svc.Get(ctx, "lol")
	assert.Equal(t, book.ErrNotFound, err)
	_, err = svc.Get(ctx, core.NewID())
	assert.Equal(t, book.ErrNotFound, err)

	qty := 0
	updated, err := svc.Update(ctx, got, book.UpdateBook{Author: "Ngũgĩ", Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "Weep Not, Child", updated.Title)
	assert.Equal(t, "Ngũgĩ", updated.Author)
	assert.Equal(t, 0, updated.Quantity)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	_, err = svc.Create(ctx, book.NewBook{Title: "Petals of Blood", Author: "Ngũgĩ wa Thiong'o", Status: book.StatusInactive})
	require.NoError(t, err)
	_, err = svc.Create(ctx, book.NewBook{Title: "Arrow of God", Author: "Chinua Achebe", ISBN: "9780306406157", Status: book.StatusActive})
	require.NoError(t, err)

	tests := []struct {
		name       string
		filter     book.QueryFilter
		page       core.Page
		wantTitles []string
		wantTotal  int
	}{
		{name: "all", wantTitles: []string{"Arrow of God", "Petals of Blood", "Weep Not, Child"}, wantTotal: 3},
		{name: "search title", filter: book.QueryFilter{Search: "petals"}, wantTitles: []string{"Petals of Blood"}, wantTotal: 1},
		{name: "search author", filter: book.QueryFilter{Search: " ngũgĩ "}, wantTitles: []string{"Petals of Blood", "Weep Not, Child"}, wantTotal: 2},
		{name: "search isbn", filter: book.QueryFilter{Search: "0306406"}, wantTitles: []string{"Arrow of God"}, wantTotal: 1},
		{name: "status", filter: book.QueryFilter{Status: "INACTIVE"}, wantTitles: []string{"Petals of Blood"}, wantTotal: 1},
		{name: "page", page: core.Page{Number: 2, Size: 2}, wantTitles: []string{"Weep Not, Child"}, wantTotal: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Query(ctx, tt.filter, tt.page)
			require.NoError(t, err)
			titles := make([]string, 0, len(res.Items))
			for _, b := range res.Items {
				titles = append(titles, b.Title)
			}
			assert.Equal(t, tt.wantTitles, titles)
			assert.Equal(t, tt.wantTotal, res.Total)
		})
	}

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Equal(t, book.ErrNotFound, svc.Delete(ctx, created.ID))
}

func TestService_Delete_withLoans(t *testing.T) {
	db := inmemdb.Open()
	conf := testutil.NewConfig(t)
	books := inmemdb.NewBookRepository(db)
	svc := book.NewService(books, conf)
	ledger := circulation.NewService(inmemdb.NewCirculationRepository(db), conf)
	ctx := context.Background()

	b := testutil.CreateBook(t, books, "Matigari", 1)
	m := testutil.CreateMember(t, inmemdb.NewMemberRepository(db), "Amina", member.TypeStudent)
	_, err := ledger.Issue(ctx, circulation.IssueRequest{BookID: b.ID, MemberID: m.ID, Due: time.Now().AddDate(0, 0, 7)})
	require.NoError(t, err)
	_, err = ledger.Return(ctx, circulation.ReturnRequest{BookID: b.ID, MemberID: m.ID})
	require.NoError(t, err)

	// closed loans still reference the book
	err = svc.Delete(ctx, b.ID)
	assert.True(t, core.IsRuleError(err))
	assert.EqualError(t, err, book.ErrHasLoans.Error())

	_, err = svc.Get(ctx, b.ID)
	assert.NoError(t, err)
}

func TestService_Update_keepsCirculatedQuantity(t *testing.T) {
	db := inmemdb.Open()
	conf := testutil.NewConfig(t)
	books := inmemdb.NewBookRepository(db)
	svc := book.NewService(books, conf)
	ledger := circulation.NewService(inmemdb.NewCirculationRepository(db), conf)
	ctx := context.Background()

	b := testutil.CreateBook(t, books, "Matigari", 2)
	m := testutil.CreateMember(t, inmemdb.NewMemberRepository(db), "Amina", member.TypeStudent)

	// loaded before the issue, as the API does for /books/:id
	orig, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)

	_, err = ledger.Issue(ctx, circulation.IssueRequest{BookID: b.ID, MemberID: m.ID, Due: time.Now().AddDate(0, 0, 7)})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, orig, book.UpdateBook{Title: "Matigari ma Njiruungi"})
	require.NoError(t, err)
	assert.Equal(t, "Matigari ma Njiruungi", updated.Title)
	assert.Equal(t, 1, updated.Quantity)

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)

	// an explicit quantity still wins
	qty := 5
	updated, err = svc.Update(ctx, orig, book.UpdateBook{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, "Matigari ma Njiruungi", updated.Title)

	_, err = svc.Update(ctx, book.Book{ID: core.NewID()}, book.UpdateBook{Title: "x"})
	assert.Equal(t, book.ErrNotFound, err)
}
