package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = sql.ErrNoRows

// Generation is one audited pipeline run.
type Generation struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Text       string          `json:"text"`
	Domain     string          `json:"domain"`
	Pattern    string          `json:"pattern_type"`
	Engine     string          `json:"engine"`
	Model      string          `json:"model"`
	Status     string          `json:"status"`
	VideoPath  string          `json:"video_path,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Generation statuses.
const (
	StatusOK             = "ok"
	StatusInvalid        = "invalid"
	StatusNotImplemented = "not_implemented"
	StatusFailed         = "failed"
)

type GenerationRepo struct {
	DB      *sql.DB
	dialect Dialect
}

func NewGenerationRepo(db *sql.DB, dialect Dialect) *GenerationRepo {
	return &GenerationRepo{DB: db, dialect: dialect}
}

// q rewrites $n placeholders for sqlite.
func (r *GenerationRepo) q(query string) string {
	if r.dialect != SQLite {
		return query
	}
	for i := 12; i >= 1; i-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
	}
	return query
}

var migrations = []string{
	`create table if not exists generations (
  id          text primary key,
  created_at  bigint not null,
  text        text not null,
  domain      text not null,
  pattern     text not null,
  engine      text not null,
  model       text not null,
  status      text not null,
  video_path  text not null default '',
  error       text not null default '',
  duration_ms bigint not null default 0,
  result_json text
)`,
	`create index if not exists generations_created_at_idx on generations (created_at desc)`,
}

func (r *GenerationRepo) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := r.DB.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *GenerationRepo) Save(ctx context.Context, g Generation) error {
	if g.ID == "" {
		return errors.New("store: generation without id")
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	var result sql.NullString
	if len(g.Result) > 0 {
		result = sql.NullString{String: string(g.Result), Valid: true}
	}
	const q = `
insert into generations (
  id, created_at, text, domain, pattern, engine, model,
  status, video_path, error, duration_ms, result_json
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.DB.ExecContext(ctx, r.q(q),
		g.ID, g.CreatedAt.UnixMilli(), g.Text, g.Domain, g.Pattern, g.Engine, g.Model,
		g.Status, g.VideoPath, g.Error, g.DurationMs, result)
	if err != nil {
		return fmt.Errorf("save generation: %w", err)
	}
	return nil
}

const selectCols = `
select id, created_at, text, domain, pattern, engine, model,
       status, video_path, error, duration_ms, result_json
from generations`

// Recent returns up to limit records, newest first.
func (r *GenerationRepo) Recent(ctx context.Context, limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, r.q(selectCols+` order by created_at desc limit $1`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		g, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GenerationRepo) Get(ctx context.Context, id string) (*Generation, error) {
	g, err := scan(r.DB.QueryRowContext(ctx, r.q(selectCols+` where id = $1`), id))
	if err != nil {
		return nil, err
	}
	return &g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Generation, error) {
	var (
		g      Generation
		ms     int64
		result sql.NullString
	)
	err := s.Scan(&g.ID, &ms, &g.Text, &g.Domain, &g.Pattern, &g.Engine, &g.Model,
		&g.Status, &g.VideoPath, &g.Error, &g.DurationMs, &result)
	if err != nil {
		return Generation{}, err
	}
	g.CreatedAt = time.UnixMilli(ms)
	if result.Valid {
		g.Result = json.RawMessage(result.String)
	}
	return g, nil
}
