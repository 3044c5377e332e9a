package circulation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
	"github.com/trezcool/maktaba/core/circulation"
	"github.com/trezcool/maktaba/core/member"
	inmemdb "github.com/trezcool/maktaba/storage/database/inmem"
	testutil "github.com/trezcool/maktaba/tests"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type ledgerEnv struct {
	conf    *core.Config
	repo    circulation.Repository
	books   book.Repository
	members member.Repository
	svc     *circulation.Service
}

func setup(t *testing.T) *ledgerEnv {
	db := inmemdb.Open()
	env := &ledgerEnv{
		conf:    testutil.NewConfig(t),
		repo:    inmemdb.NewCirculationRepository(db),
		books:   inmemdb.NewBookRepository(db),
		members: inmemdb.NewMemberRepository(db),
	}
	env.svc = circulation.NewService(env.repo, env.conf, circulation.WithClock(func() time.Time { return testNow }))
	return env
}

func (env *ledgerEnv) quantity(t *testing.T, id string) int {
	t.Helper()
	b, err := env.books.GetBook(context.Background(), id)
	require.NoError(t, err)
	return b.Quantity
}

func issueReq(b book.Book, m member.Member, due time.Time) circulation.IssueRequest {
	return circulation.IssueRequest{BookID: b.ID, MemberID: m.ID, Due: due}
}

func returnReq(b book.Book, m member.Member) circulation.ReturnRequest {
	return circulation.ReturnRequest{BookID: b.ID, MemberID: m.ID}
}

func TestService_singleCopy(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	a := testutil.CreateBook(t, env.books, "A Grain of Wheat", 1)
	m1 := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)
	m2 := testutil.CreateMember(t, env.members, "Baraka", member.TypeStaff)
	due := testNow.AddDate(0, 0, 7)

	res, err := env.svc.Issue(ctx, issueReq(a, m1, due))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Book.Quantity)
	assert.Equal(t, circulation.StatusIssued, res.Loan.Status)
	assert.Equal(t, testNow, res.Loan.IssueDate)
	assert.Equal(t, due, res.Loan.DueDate)
	assert.Nil(t, res.Loan.ReturnDate)
	assert.Nil(t, res.Loan.FineAmount)
	assert.Equal(t, 0, env.quantity(t, a.ID))

	_, err = env.svc.Issue(ctx, issueReq(a, m2, due))
	assert.True(t, core.IsRuleError(err))
	assert.EqualError(t, err, circulation.ErrBookUnavailable.Error())

	ret, err := env.svc.Return(ctx, returnReq(a, m1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), ret.FineAmount)
	assert.Equal(t, 1, ret.Book.Quantity)
	assert.Equal(t, circulation.StatusReturned, ret.Loan.Status)
	if assert.NotNil(t, ret.Loan.ReturnDate) {
		assert.Equal(t, testNow, *ret.Loan.ReturnDate)
	}
	if assert.NotNil(t, ret.Loan.FineAmount) {
		assert.Equal(t, int64(0), *ret.Loan.FineAmount)
	}
	assert.Equal(t, 1, env.quantity(t, a.ID))

	_, err = env.svc.Issue(ctx, issueReq(a, m2, due))
	assert.NoError(t, err)
	assert.Equal(t, 0, env.quantity(t, a.ID))
}

func TestService_overdueReturn(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	b := testutil.CreateBook(t, env.books, "Petals of Blood", 3)
	m := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)

	_, err := env.svc.Issue(ctx, issueReq(b, m, testNow.AddDate(0, 0, -3)))
	require.NoError(t, err)
	assert.Equal(t, 2, env.quantity(t, b.ID))

	ret, err := env.svc.Return(ctx, returnReq(b, m))
	require.NoError(t, err)
	assert.Equal(t, int64(30), ret.FineAmount)
	if assert.NotNil(t, ret.Loan.FineAmount) {
		assert.Equal(t, int64(30), *ret.Loan.FineAmount)
	}
	assert.Equal(t, 3, ret.Book.Quantity)
}

func TestService_configurableFine(t *testing.T) {
	env := setup(t)
	env.conf.Circulation.FinePerDay = 50
	svc := circulation.NewService(env.repo, env.conf, circulation.WithClock(func() time.Time { return testNow }))

	b := testutil.CreateBook(t, env.books, "Devil on the Cross", 1)
	m := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)
	_, err := svc.Issue(context.Background(), issueReq(b, m, testNow.AddDate(0, 0, -2)))
	require.NoError(t, err)

	ret, err := svc.Return(context.Background(), returnReq(b, m))
	require.NoError(t, err)
	assert.Equal(t, int64(100), ret.FineAmount)
	assert.Equal(t, int64(50), svc.FinePolicy().PerDay)
}

func TestService_Issue_errors(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	b := testutil.CreateBook(t, env.books, "Matigari", 2)
	empty := testutil.CreateBook(t, env.books, "Wizard of the Crow", 0)
	m := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)
	due := testNow.AddDate(0, 0, 7)

	_, err := env.svc.Issue(ctx, issueReq(b, m, due))
	require.NoError(t, err)

	tests := []struct {
		name        string
		req         circulation.IssueRequest
		wantErr     error
		wantRuleErr error
	}{
		{name: "malformed book id", req: circulation.IssueRequest{BookID: "lol", MemberID: m.ID}, wantErr: book.ErrNotFound},
		{name: "unknown book", req: circulation.IssueRequest{BookID: core.NewID(), MemberID: m.ID}, wantErr: book.ErrNotFound},
		{name: "malformed member id", req: circulation.IssueRequest{BookID: b.ID, MemberID: "lol"}, wantErr: member.ErrNotFound},
		{name: "unknown member", req: circulation.IssueRequest{BookID: b.ID, MemberID: core.NewID()}, wantErr: member.ErrNotFound},
		{name: "unknown book and member", req: circulation.IssueRequest{BookID: core.NewID(), MemberID: core.NewID()}, wantErr: book.ErrNotFound},
		{name: "no copy left", req: issueReq(empty, m, due), wantRuleErr: circulation.ErrBookUnavailable},
		{name: "already issued", req: issueReq(b, m, due), wantRuleErr: circulation.ErrAlreadyIssued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Issue(ctx, tt.req)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.True(t, core.IsNotFound(err))
			} else {
				assert.True(t, core.IsRuleError(err))
				var re *core.RuleError
				if assert.ErrorAs(t, err, &re) {
					assert.Equal(t, tt.wantRuleErr, re.Err)
				}
			}
		})
	}

	// failed issues leave the shelf untouched
	assert.Equal(t, 1, env.quantity(t, b.ID))
	assert.Equal(t, 0, env.quantity(t, empty.ID))
}

func TestService_Return_errors(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	b := testutil.CreateBook(t, env.books, "The River Between", 1)
	m := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)

	_, err := env.svc.Return(ctx, returnReq(b, m))
	assert.Equal(t, circulation.ErrOpenLoanNotFound, err)

	_, err = env.svc.Return(ctx, circulation.ReturnRequest{BookID: "lol", MemberID: m.ID})
	assert.Equal(t, circulation.ErrOpenLoanNotFound, err)

	_, err = env.svc.Issue(ctx, issueReq(b, m, testNow.AddDate(0, 0, 7)))
	require.NoError(t, err)
	_, err = env.svc.Return(ctx, returnReq(b, m))
	require.NoError(t, err)

	// the loan is closed: a second return finds nothing and does not bump the quantity
	_, err = env.svc.Return(ctx, returnReq(b, m))
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, 1, env.quantity(t, b.ID))
}

func TestService_MarkLost(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	b := testutil.CreateBook(t, env.books, "Weep Not, Child", 2)
	m := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)

	res, err := env.svc.Issue(ctx, issueReq(b, m, testNow.AddDate(0, 0, 7)))
	require.NoError(t, err)

	loan, err := env.svc.MarkLost(ctx, res.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusLost, loan.Status)
	assert.Nil(t, loan.ReturnDate)
	assert.Equal(t, 1, env.quantity(t, b.ID))

	_, err = env.svc.MarkLost(ctx, res.Loan.ID)
	assert.True(t, core.IsRuleError(err))

	_, err = env.svc.Return(ctx, returnReq(b, m))
	assert.Equal(t, circulation.ErrOpenLoanNotFound, err)

	_, err = env.svc.MarkLost(ctx, core.NewID())
	assert.Equal(t, circulation.ErrNotFound, err)
	_, err = env.svc.MarkLost(ctx, "lol")
	assert.Equal(t, circulation.ErrNotFound, err)

	// a lost loan no longer blocks a new issue to the same member
	_, err = env.svc.Issue(ctx, issueReq(b, m, testNow.AddDate(0, 0, 7)))
	assert.NoError(t, err)
}

// failingRepo fails the quantity adjustment after the loan has been written.
type failingRepo struct {
	circulation.Repository
}

type failingTx struct {
	circulation.Tx
}

var errAdjust = errors.New("adjust failed")

func (r failingRepo) WithinTx(ctx context.Context, fn func(tx circulation.Tx) error) error {
	return r.Repository.WithinTx(ctx, func(tx circulation.Tx) error {
		return fn(failingTx{tx})
	})
}

func (failingTx) AdjustBookQuantity(context.Context, string, int) (book.Book, error) {
	return book.Book{}, errAdjust
}

func TestService_rollback(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	svc := circulation.NewService(failingRepo{env.repo}, env.conf, circulation.WithClock(func() time.Time { return testNow }))

	b := testutil.CreateBook(t, env.books, "Decolonising the Mind", 1)
	m := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)

	_, err := svc.Issue(ctx, issueReq(b, m, testNow.AddDate(0, 0, 7)))
	assert.Equal(t, errAdjust, err)
	assert.Equal(t, 1, env.quantity(t, b.ID))

	loans, err := env.svc.Query(ctx, circulation.QueryFilter{}, core.Page{})
	require.NoError(t, err)
	assert.Empty(t, loans.Items)

	// same for returns: the loan stays issued
	res, err := env.svc.Issue(ctx, issueReq(b, m, testNow.AddDate(0, 0, -1)))
	require.NoError(t, err)
	_, err = svc.Return(ctx, returnReq(b, m))
	assert.Equal(t, errAdjust, err)

	got, err := env.svc.Get(ctx, res.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusIssued, got.Status)
	assert.Nil(t, got.FineAmount)
	assert.Equal(t, 0, env.quantity(t, b.ID))
}

func TestService_concurrentIssue(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	const copies, borrowers = 3, 20
	b := testutil.CreateBook(t, env.books, "Homecoming", copies)
	members := make([]member.Member, borrowers)
	for i := range members {
		members[i] = testutil.CreateMember(t, env.members, fmt.Sprintf("member %02d", i), member.TypeStudent)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		issued   int
		rejected int
	)
	for _, m := range members {
		wg.Add(1)
		go func(m member.Member) {
			defer wg.Done()
			_, err := env.svc.Issue(ctx, issueReq(b, m, testNow.AddDate(0, 0, 7)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				issued++
			} else if core.IsRuleError(err) {
				rejected++
			}
		}(m)
	}
	wg.Wait()

	assert.Equal(t, copies, issued)
	assert.Equal(t, borrowers-copies, rejected)
	assert.Equal(t, 0, env.quantity(t, b.ID))

	open, err := env.svc.Query(ctx, circulation.QueryFilter{Status: circulation.StatusIssued, BookID: b.ID}, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, copies, open.Total)
}

func TestService_Query(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	b1 := testutil.CreateBook(t, env.books, "Nervous Conditions", 5)
	b2 := testutil.CreateBook(t, env.books, "So Long a Letter", 5)
	m1 := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)
	m2 := testutil.CreateMember(t, env.members, "Baraka", member.TypeStaff)

	clock := testNow
	svc := circulation.NewService(env.repo, env.conf, circulation.WithClock(func() time.Time { return clock }))
	for _, p := range []struct {
		b book.Book
		m member.Member
	}{{b1, m1}, {b2, m1}, {b1, m2}} {
		clock = clock.Add(time.Hour)
		_, err := svc.Issue(ctx, issueReq(p.b, p.m, clock.AddDate(0, 0, 7)))
		require.NoError(t, err)
	}
	_, err := svc.Return(ctx, returnReq(b2, m1))
	require.NoError(t, err)

	all, err := svc.Query(ctx, circulation.QueryFilter{}, core.Page{})
	require.NoError(t, err)
	if assert.Len(t, all.Items, 3) {
		// newest first
		assert.Equal(t, m2.ID, all.Items[0].MemberID)
		assert.Equal(t, "Nervous Conditions", all.Items[0].Book.Title)
		assert.Equal(t, "Baraka", all.Items[0].Member.Name)
		assert.Equal(t, b2.ID, all.Items[1].BookID)
	}

	tests := []struct {
		name      string
		filter    circulation.QueryFilter
		page      core.Page
		wantTotal int
		wantLen   int
		wantErr   bool
	}{
		{name: "issued", filter: circulation.QueryFilter{Status: circulation.StatusIssued}, wantTotal: 2, wantLen: 2},
		{name: "returned", filter: circulation.QueryFilter{Status: circulation.StatusReturned}, wantTotal: 1, wantLen: 1},
		{name: "by member", filter: circulation.QueryFilter{MemberID: " " + m1.ID + " "}, wantTotal: 2, wantLen: 2},
		{name: "by book and member", filter: circulation.QueryFilter{BookID: b1.ID, MemberID: m2.ID}, wantTotal: 1, wantLen: 1},
		{name: "paginated", page: core.Page{Number: 2, Size: 2}, wantTotal: 3, wantLen: 1},
		{name: "past last page", page: core.Page{Number: 5, Size: 2}, wantTotal: 3},
		{name: "invalid status", filter: circulation.QueryFilter{Status: circulation.Status(9)}, wantErr: true},
		{name: "invalid member id", filter: circulation.QueryFilter{MemberID: "lol"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Query(ctx, tt.filter, tt.page)
			if tt.wantErr {
				var ve *core.ValidationError
				assert.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, got.Total)
			assert.Len(t, got.Items, tt.wantLen)
		})
	}
}

func TestService_Overdue(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	b := testutil.CreateBook(t, env.books, "Arrow of God", 5)
	m1 := testutil.CreateMember(t, env.members, "Amina", member.TypeStudent)
	m2 := testutil.CreateMember(t, env.members, "Baraka", member.TypeStaff)
	m3 := testutil.CreateMember(t, env.members, "Chausiku", member.TypeStudent)

	_, err := env.svc.Issue(ctx, issueReq(b, m1, testNow.AddDate(0, 0, -1)))
	require.NoError(t, err)
	_, err = env.svc.Issue(ctx, issueReq(b, m2, testNow.AddDate(0, 0, -5)))
	require.NoError(t, err)
	_, err = env.svc.Issue(ctx, issueReq(b, m3, testNow.AddDate(0, 0, 2)))
	require.NoError(t, err)

	overdue, err := env.svc.Overdue(ctx)
	require.NoError(t, err)
	if assert.Len(t, overdue, 2) {
		assert.Equal(t, m2.ID, overdue[0].MemberID)
		assert.Equal(t, m1.ID, overdue[1].MemberID)
	}
}
