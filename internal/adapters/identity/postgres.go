package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skatehub/gateway/internal/domain"
)

// Querier is the slice of pgxpool.Pool the user store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const lookupUserSQL = `
	SELECT id::text, external_id, username, is_active
	FROM users
	WHERE external_id = $1
`

// PostgresUsers resolves token subjects against the platform's users table.
type PostgresUsers struct {
	db Querier
}

func NewPostgresUsers(db Querier) *PostgresUsers {
	return &PostgresUsers{db: db}
}

// Connect opens a pool and checks it is reachable.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (p *PostgresUsers) LookupUser(ctx context.Context, subject string) (domain.User, bool, error) {
	var (
		u  domain.User
		id string
	)
	err := p.db.QueryRow(ctx, lookupUserSQL, subject).Scan(&id, &u.ExternalID, &u.Username, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("lookup user: %w", err)
	}
	u.ID = domain.UserID(id)
	return u, true, nil
}
