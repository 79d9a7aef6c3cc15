package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores documents as jsonb rows. Versions come from a
// sequence shared by all rows, so they are never reused.
type PostgresBackend struct {
	pool     *pgxpool.Pool
	name     string
	table    string
	sequence string
}

// NewPostgresBackend creates a backend on table. Call EnsureSchema once at startup.
func NewPostgresBackend(pool *pgxpool.Pool, table string) *PostgresBackend {
	if table == "" {
		table = "documents"
	}
	return &PostgresBackend{
		pool:     pool,
		name:     table,
		table:    pgx.Identifier{table}.Sanitize(),
		sequence: pgx.Identifier{table + "_cas_seq"}.Sanitize(),
	}
}

// EnsureSchema creates the table, its version sequence and the type index
func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s`, p.sequence),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id   text PRIMARY KEY,
			type text NOT NULL,
			cas  bigint NOT NULL,
			body jsonb NOT NULL
		)`, p.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (type)`,
			pgx.Identifier{p.name + "_type_idx"}.Sanitize(), p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *PostgresBackend) Get(ctx context.Context, id string) (Record, error) {
	var cas int64
	var raw []byte
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT cas, body FROM %s WHERE id = $1`, p.table), id).Scan(&cas, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrKeyNotFound
		}
		return Record{}, err
	}
	return pgRecord(id, cas, raw)
}

func (p *PostgresBackend) Query(ctx context.Context, docType string) ([]Record, error) {
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, cas, body FROM %s WHERE type = $1`, p.table), docType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var id string
		var cas int64
		var raw []byte
		if err := rows.Scan(&id, &cas, &raw); err != nil {
			return nil, err
		}
		rec, err := pgRecord(id, cas, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresBackend) Insert(ctx context.Context, id string, body Fields, d Durability) (Version, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize document: %w", err)
	}

	var cas int64
	err = p.write(ctx, d, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, type, cas, body) VALUES ($1, $2, nextval('%s'), $3::jsonb) RETURNING cas`,
				p.table, p.sequence),
			id, recordType(body), string(raw)).Scan(&cas)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrKeyExists
		}
		return 0, err
	}
	return Version(cas), nil
}

func (p *PostgresBackend) Replace(ctx context.Context, id string, body Fields, expected Version, d Durability) (Version, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize document: %w", err)
	}

	var cas int64
	err = p.write(ctx, d, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			fmt.Sprintf(`UPDATE %s SET type = $2, body = $3::jsonb, cas = nextval('%s') WHERE id = $1 AND cas = $4 RETURNING cas`,
				p.table, p.sequence),
			id, recordType(body), string(raw), int64(expected)).Scan(&cas)
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, p.table), id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrKeyNotFound
		}
		return ErrCASMismatch
	})
	if err != nil {
		return 0, err
	}
	return Version(cas), nil
}

func (p *PostgresBackend) Remove(ctx context.Context, id string, d Durability) error {
	return p.write(ctx, d, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, p.table), id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrKeyNotFound
		}
		return nil
	})
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// write runs fn in a transaction with the durability policy applied
func (p *PostgresBackend) write(ctx context.Context, d Durability, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if level := synchronousCommitFor(d); level != "" {
			if _, err := tx.Exec(ctx, "SET LOCAL synchronous_commit = "+level); err != nil {
				return err
			}
		}
		if d.Timeout > 0 {
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", d.Timeout.Milliseconds())); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

// synchronousCommitFor maps the durability policy onto synchronous_commit.
// An empty result keeps the server default.
func synchronousCommitFor(d Durability) string {
	switch {
	case d.Level == DurabilityPersistToMajority || d.PersistTo > 0:
		return "on"
	case d.Level == DurabilityMajority || d.ReplicateTo > 0:
		return "remote_write"
	default:
		return ""
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func pgRecord(id string, cas int64, raw []byte) (Record, error) {
	var body Fields
	if err := json.Unmarshal(raw, &body); err != nil {
		return Record{}, fmt.Errorf("failed to deserialize document %s: %w", id, err)
	}
	return Record{ID: id, Version: Version(cas), Body: body}, nil
}
