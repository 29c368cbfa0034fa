package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	filesDomain "taeu.kr/filebox/internal/files"
)

type QuotaStore struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewQuotaStore(db *sql.DB) *QuotaStore {
	return &QuotaStore{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func (s *QuotaStore) GetUsage(ctx context.Context, userID int64) (int64, error) {
	sqlQuery, args, err := s.qb.
		Select("usage").
		From("files_quotas").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for GetUsage: %w", err)
	}

	var usage int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&usage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, filesDomain.ErrQuotaNotFound
		}
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}
	return usage, nil
}

func (s *QuotaStore) SetUsage(ctx context.Context, userID int64, usage int64) error {
	sqlQuery, args, err := s.qb.
		Insert("files_quotas").
		Columns("user_id", "usage").
		Values(userID, usage).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET usage = excluded.usage").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetUsage: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to set usage: %w", err)
	}
	return nil
}

func (s *QuotaStore) AddUsage(ctx context.Context, userID int64, delta int64) error {
	sqlQuery, args, err := s.qb.
		Update("files_quotas").
		Set("usage", sq.Expr("usage + ?", delta)).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for AddUsage: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to add usage: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return filesDomain.ErrQuotaNotFound
	}
	return nil
}

func (s *QuotaStore) DeleteUsage(ctx context.Context, userID int64) error {
	sqlQuery, args, err := s.qb.
		Delete("files_quotas").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteUsage: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to delete usage: %w", err)
	}
	return nil
}
