package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
)

const (
	pqForeignKeyViolation pq.ErrorCode = "23503"
	pqUniqueViolation     pq.ErrorCode = "23505"
	pqCheckViolation      pq.ErrorCode = "23514"
)

// pqErrorCode returns the SQLSTATE of a Postgres error, or "" for any other error.
func pqErrorCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// conditions accumulates the WHERE clause of a filtered query, with `?` bind vars.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c *conditions) String() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
	return "%" + s + "%"
}

// paginate appends LIMIT/OFFSET for page to query.
func paginate(query string, args []interface{}, page core.Page) (string, []interface{}) {
	return query + " LIMIT ? OFFSET ?", append(args, page.Size, page.Offset())
}

// sqlxNamedExec binds the `:name` parameters of query from arg and executes it on db.
func sqlxNamedExec(ctx context.Context, db core.DBExecutor, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, db, query, arg)
}
