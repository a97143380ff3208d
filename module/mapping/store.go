package mapping

import (
	"context"
	"errors"
	"time"

	"NapChat/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store 映射表在旧系统的关系库里，走 postgres。
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{Pool: pool} }

// EnsureSchema 建表（存在即跳过）。
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_mappings (
			old_user_id   TEXT PRIMARY KEY,
			new_user_id   TEXT NOT NULL,
			email         TEXT,
			name          TEXT,
			updated_at_ms BIGINT NOT NULL
		)`)
	return errs.WrapMsg(err, "ensure user_mappings schema")
}

// Upsert 幂等写入：同 oldUserId 重复调用只刷新字段。
func (s *Store) Upsert(ctx context.Context, m *UserMapping) error {
	m.UpdatedAtMS = time.Now().UnixMilli()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO user_mappings (old_user_id, new_user_id, email, name, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (old_user_id) DO UPDATE
		SET new_user_id = EXCLUDED.new_user_id,
		    email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    updated_at_ms = EXCLUDED.updated_at_ms`,
		m.OldUserID, m.NewUserID, m.Email, m.Name, m.UpdatedAtMS)
	return errs.WrapMsg(err, "upsert user mapping", "oldUserId", m.OldUserID)
}

// Lookup 按任一键查；没查到返回 (nil, nil)，不算错。
func (s *Store) Lookup(ctx context.Context, oldUserID, newUserID, email string) (*UserMapping, error) {
	var (
		query string
		arg   string
	)
	switch {
	case oldUserID != "":
		query, arg = `old_user_id = $1`, oldUserID
	case newUserID != "":
		query, arg = `new_user_id = $1`, newUserID
	case email != "":
		query, arg = `email = $1`, email
	default:
		return nil, errs.New("one of oldUserId/newUserId/email is required")
	}

	var m UserMapping
	err := s.Pool.QueryRow(ctx, `
		SELECT old_user_id, new_user_id, COALESCE(email, ''), COALESCE(name, ''), updated_at_ms
		FROM user_mappings WHERE `+query+` LIMIT 1`, arg).
		Scan(&m.OldUserID, &m.NewUserID, &m.Email, &m.Name, &m.UpdatedAtMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "lookup user mapping")
	}
	return &m, nil
}
