package member

import (
	"context"
	"errors"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/maktaba/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("member not found")
	ErrHasLoans = errors.New("member has circulation records and cannot be deleted")
)

type (
	Repository interface {
		CreateMember(ctx context.Context, m Member) (Member, error)
		GetMember(ctx context.Context, id string) (Member, error)
		// QueryMembers applies AND operation on available QueryFilter fields and returns the page along with the total count.
		QueryMembers(ctx context.Context, filter QueryFilter, page core.Page) ([]Member, int, error)
		UpdateMember(ctx context.Context, m Member) (Member, error)
		DeleteMember(ctx context.Context, id string) error
	}

	Service struct {
		repo        Repository
		maxPageSize int
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{repo: repo, maxPageSize: conf.Circulation.MaxPageSize}
}

func (svc *Service) Create(ctx context.Context, nm NewMember) (Member, error) {
	now := time.Now().UTC()
	return svc.repo.CreateMember(ctx, Member{
		ID:          core.NewID(),
		Name:        nm.Name,
		Email:       nm.Email,
		Type:        nm.Type,
		ReferenceNo: nm.ReferenceNo,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Member, error) {
	if !core.IsValidID(id) {
		return Member{}, ErrNotFound
	}
	return svc.repo.GetMember(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, page core.Page) (core.Paginated[Member], error) {
	filter.Clean()
	page = page.Clean(svc.maxPageSize)
	members, total, err := svc.repo.QueryMembers(ctx, filter, page)
	if err != nil {
		return core.Paginated[Member]{}, err
	}
	return core.NewPaginated(members, page, total), nil
}

func (svc *Service) Update(ctx context.Context, orig Member, um UpdateMember) (Member, error) {
	m := um.apply(orig)
	m.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMember(ctx, m)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if !core.IsValidID(id) {
		return ErrNotFound
	}
	return svc.repo.DeleteMember(ctx, id)
}
