package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kvetinski/bank/internal/domain"
	"github.com/kvetinski/bank/internal/telemetry"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    document VARCHAR(11) NOT NULL,
    phone VARCHAR(17) NOT NULL
);
ALTER TABLE accounts ALTER COLUMN name TYPE TEXT;
`

// Postgres stores accounts through database/sql with the lib/pq driver.
type Postgres struct {
	db      *sql.DB
	metrics *telemetry.Metrics
}

func New(db *sql.DB) *Postgres {
	return NewWithMetrics(db, nil)
}

func NewWithMetrics(db *sql.DB, metrics *telemetry.Metrics) *Postgres {
	return &Postgres{
		db:      db,
		metrics: metrics,
	}
}

// OpenPostgres opens a connection pool for uri and verifies it with a ping.
func OpenPostgres(ctx context.Context, uri string) (*sql.DB, error) {
	connector, err := pq.NewConnector(uri)
	if err != nil {
		return nil, fmt.Errorf("parse postgres uri: %w", err)
	}

	db := sql.OpenDB(connector)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the accounts table when it does not exist and widens
// name on tables created with a bounded column.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

func (r *Postgres) Save(ctx context.Context, acc domain.Account) (out domain.Account, err error) {
	if acc.ID == 0 {
		return r.insert(ctx, acc)
	}

	ctx, c := startCall(ctx, r.metrics, "postgresql", "update")
	defer func() { c.end(err) }()

	const q = `
		UPDATE accounts
		SET name = $2,
		    document = $3,
		    phone = $4
		WHERE id = $1
		RETURNING id, name, document, phone
	`

	if err = r.db.QueryRowContext(ctx, q, acc.ID, acc.Name, acc.Document, acc.Phone).Scan(&out.ID, &out.Name, &out.Document, &out.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrAccountNotFound
			return domain.Account{}, err
		}

		err = fmt.Errorf("update account: %w", err)
		return domain.Account{}, err
	}

	return out, nil
}

func (r *Postgres) insert(ctx context.Context, acc domain.Account) (out domain.Account, err error) {
	ctx, c := startCall(ctx, r.metrics, "postgresql", "insert")
	defer func() { c.end(err) }()

	const q = `
		INSERT INTO accounts (name, document, phone)
		VALUES ($1, $2, $3)
		RETURNING id, name, document, phone
	`

	if err = r.db.QueryRowContext(ctx, q, acc.Name, acc.Document, acc.Phone).Scan(&out.ID, &out.Name, &out.Document, &out.Phone); err != nil {
		err = fmt.Errorf("insert account: %w", err)
		return domain.Account{}, err
	}

	return out, nil
}

func (r *Postgres) FindByID(ctx context.Context, id int64) (out domain.Account, err error) {
	ctx, c := startCall(ctx, r.metrics, "postgresql", "find_by_id")
	defer func() { c.end(err) }()

	const q = `
		SELECT id, name, document, phone
		FROM accounts
		WHERE id = $1
	`

	if err = r.db.QueryRowContext(ctx, q, id).Scan(&out.ID, &out.Name, &out.Document, &out.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrAccountNotFound
			return domain.Account{}, err
		}

		err = fmt.Errorf("get account: %w", err)
		return domain.Account{}, err
	}

	return out, nil
}

func (r *Postgres) FindAll(ctx context.Context) (out []domain.Account, err error) {
	ctx, c := startCall(ctx, r.metrics, "postgresql", "find_all")
	defer func() { c.end(err) }()

	const q = `
		SELECT id, name, document, phone
		FROM accounts
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		err = fmt.Errorf("list accounts: %w", err)
		return nil, err
	}
	defer rows.Close()

	out = []domain.Account{}
	for rows.Next() {
		var a domain.Account
		if err = rows.Scan(&a.ID, &a.Name, &a.Document, &a.Phone); err != nil {
			err = fmt.Errorf("scan account: %w", err)
			return nil, err
		}
		out = append(out, a)
	}

	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterate accounts: %w", err)
		return nil, err
	}

	return out, nil
}

func (r *Postgres) DeleteByID(ctx context.Context, id int64) (err error) {
	ctx, c := startCall(ctx, r.metrics, "postgresql", "delete")
	defer func() { c.end(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		err = fmt.Errorf("delete account: %w", err)
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("delete account rows affected: %w", err)
		return err
	}

	if rows == 0 {
		err = domain.ErrAccountNotFound
		return err
	}

	return nil
}
