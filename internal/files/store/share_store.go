package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	filesDomain "taeu.kr/filebox/internal/files"
)

type ShareStore struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewShareStore(db *sql.DB) *ShareStore {
	return &ShareStore{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

var shareColumns = []string{"hash", "owner", "path", "shortlink_id", "created_at"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner) (*filesDomain.ShareRecord, error) {
	record := &filesDomain.ShareRecord{}
	if err := row.Scan(&record.Hash, &record.Owner, &record.Path, &record.ShortlinkID, &record.CreatedAt); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *ShareStore) getOne(ctx context.Context, where sq.Sqlizer) (*filesDomain.ShareRecord, error) {
	sqlQuery, args, err := s.qb.
		Select(shareColumns...).
		From("files_public").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for share lookup: %w", err)
	}

	record, err := scanShare(s.db.QueryRowContext(ctx, sqlQuery, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, filesDomain.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return record, nil
}

func (s *ShareStore) GetByOwnerPath(ctx context.Context, owner int64, path string) (*filesDomain.ShareRecord, error) {
	return s.getOne(ctx, sq.Eq{"owner": owner, "path": path})
}

func (s *ShareStore) GetByHash(ctx context.Context, hash string) (*filesDomain.ShareRecord, error) {
	return s.getOne(ctx, sq.Eq{"hash": hash})
}

func (s *ShareStore) Create(ctx context.Context, record *filesDomain.ShareRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	sqlQuery, args, err := s.qb.
		Insert("files_public").
		Columns(shareColumns...).
		Values(record.Hash, record.Owner, record.Path, record.ShortlinkID, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Create: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %v", filesDomain.ErrShareExists, err)
		}
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

func (s *ShareStore) Delete(ctx context.Context, hashes ...string) error {
	if len(hashes) == 0 {
		return nil
	}
	sqlQuery, args, err := s.qb.
		Delete("files_public").
		Where(sq.Eq{"hash": hashes}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to delete shares: %w", err)
	}
	return nil
}

func (s *ShareStore) list(ctx context.Context, where sq.Sqlizer) ([]*filesDomain.ShareRecord, error) {
	sqlQuery, args, err := s.qb.
		Select(shareColumns...).
		From("files_public").
		Where(where).
		OrderBy("path ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for share list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	records := make([]*filesDomain.ShareRecord, 0)
	for rows.Next() {
		record, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return records, nil
}

func (s *ShareStore) ListByOwner(ctx context.Context, owner int64) ([]*filesDomain.ShareRecord, error) {
	return s.list(ctx, sq.Eq{"owner": owner})
}

// ListByPrefix는 LIKE 대신 substr 비교를 사용합니다. 경로에 %나 _가 있어도 정확히 일치합니다.
func (s *ShareStore) ListByPrefix(ctx context.Context, owner int64, prefix string) ([]*filesDomain.ShareRecord, error) {
	return s.list(ctx, sq.And{
		sq.Eq{"owner": owner},
		sq.Expr("substr(path, 1, length(?)) = ?", prefix, prefix),
	})
}

func (s *ShareStore) UpdatePath(ctx context.Context, owner int64, oldPath, newPath string) error {
	sqlQuery, args, err := s.qb.
		Update("files_public").
		Set("path", newPath).
		Where(sq.Eq{"owner": owner, "path": oldPath}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for UpdatePath: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to update share path: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return filesDomain.ErrShareNotFound
	}
	return nil
}

// RewritePrefix는 oldPrefix로 시작하는 모든 경로의 앞부분을 newPrefix로 바꿉니다
func (s *ShareStore) RewritePrefix(ctx context.Context, owner int64, oldPrefix, newPrefix string) (int64, error) {
	sqlQuery, args, err := s.qb.
		Update("files_public").
		Set("path", sq.Expr("? || substr(path, length(?) + 1)", newPrefix, oldPrefix)).
		Where(sq.And{
			sq.Eq{"owner": owner},
			sq.Expr("substr(path, 1, length(?)) = ?", oldPrefix, oldPrefix),
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for RewritePrefix: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite share paths: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

func (s *ShareStore) DeleteByOwner(ctx context.Context, owner int64) error {
	sqlQuery, args, err := s.qb.
		Delete("files_public").
		Where(sq.Eq{"owner": owner}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteByOwner: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to delete owner shares: %w", err)
	}
	return nil
}
