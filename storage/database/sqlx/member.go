package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/member"
)

const memberColumns = "id, name, email, member_type, reference_no, is_active, created_at, updated_at"

type memberRepository struct {
	db core.DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db core.DB) member.Repository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	q := `INSERT INTO members (` + memberColumns + `)
		VALUES (:id, :name, :email, :member_type, :reference_no, :is_active, :created_at, :updated_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, m); err != nil {
		return member.Member{}, errors.Wrap(err, "inserting member")
	}
	return m, nil
}

func (repo *memberRepository) GetMember(ctx context.Context, id string) (member.Member, error) {
	return getMember(ctx, repo.db, id)
}

func getMember(ctx context.Context, db core.DBExecutor, id string) (member.Member, error) {
	var m member.Member
	if err := db.GetContext(ctx, &m, "SELECT "+memberColumns+" FROM members WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return member.Member{}, member.ErrNotFound
		}
		return member.Member{}, errors.Wrap(err, "selecting member")
	}
	return m, nil
}

func (repo *memberRepository) QueryMembers(ctx context.Context, filter member.QueryFilter, page core.Page) ([]member.Member, int, error) {
	var where conditions
	if filter.Search != "" {
		s := likePattern(filter.Search)
		where.add("(name ILIKE ? OR email ILIKE ? OR reference_no ILIKE ?)", s, s, s)
	}
	if filter.Type != "" {
		where.add("member_type = ?", filter.Type)
	}
	if filter.IsActive != nil {
		where.add("is_active = ?", *filter.IsActive)
	}

	var total int
	q := repo.db.Rebind("SELECT COUNT(*) FROM members" + where.String())
	if err := repo.db.GetContext(ctx, &total, q, where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting members")
	}

	q, args := paginate("SELECT "+memberColumns+" FROM members"+where.String()+" ORDER BY name ASC, id ASC", where.args, page)
	members := make([]member.Member, 0, page.Size)
	if err := repo.db.SelectContext(ctx, &members, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting members")
	}
	return members, total, nil
}

func (repo *memberRepository) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	q := `UPDATE members
		SET name = :name, email = :email, member_type = :member_type, reference_no = :reference_no,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, m)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "updating member")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return member.Member{}, member.ErrNotFound
	}
	return getMember(ctx, repo.db, m.ID)
}

func (repo *memberRepository) DeleteMember(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM members WHERE id = $1", id)
	if err != nil {
		if pqErrorCode(err) == pqForeignKeyViolation {
			return core.NewRuleError(member.ErrHasLoans)
		}
		return errors.Wrap(err, "deleting member")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return member.ErrNotFound
	}
	return nil
}
