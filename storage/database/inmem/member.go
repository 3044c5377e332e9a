package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/member"
)

type memberRepository struct {
	db *DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *DB) member.Repository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) CreateMember(_ context.Context, m member.Member) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.members[m.ID] = &m
	return m, nil
}

func (repo *memberRepository) GetMember(_ context.Context, id string) (member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.members[id]; ok {
		return *m, nil
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) QueryMembers(_ context.Context, filter member.QueryFilter, page core.Page) ([]member.Member, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]member.Member, 0, len(repo.db.members))
	for _, m := range repo.db.members {
		if filter.Matches(*m) {
			members = append(members, *m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name == members[j].Name {
			return members[i].ID < members[j].ID
		}
		return members[i].Name < members[j].Name
	})
	return core.PageSlice(members, page), len(members), nil
}

func (repo *memberRepository) UpdateMember(_ context.Context, m member.Member) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.members[m.ID]
	if !ok {
		return member.Member{}, member.ErrNotFound
	}
	m.CreatedAt = orig.CreatedAt
	repo.db.members[m.ID] = &m
	return m, nil
}

func (repo *memberRepository) DeleteMember(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.members[id]; !ok {
		return member.ErrNotFound
	}
	for _, l := range repo.db.loans {
		if l.MemberID == id {
			return core.NewRuleError(member.ErrHasLoans)
		}
	}
	delete(repo.db.members, id)
	return nil
}
