package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"taeu.kr/filebox/internal/account"
)

type Store struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

var userColumns = []string{"id", "username", "password_hash", "nickname", "created_at", "updated_at"}

func scanUser(row interface{ Scan(dest ...any) error }) (*account.User, error) {
	var user account.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Nickname, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*account.User, error) {
	query, args, err := s.qb.
		Select(userColumns...).
		From("users").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*account.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, user := range users {
		if user.Capabilities, err = s.GetCapabilities(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*account.User, error) {
	return s.getUser(ctx, sq.Eq{"id": id})
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*account.User, error) {
	return s.getUser(ctx, sq.Eq{"username": username})
}

func (s *Store) getUser(ctx context.Context, where sq.Eq) (*account.User, error) {
	query, args, err := s.qb.
		Select(userColumns...).
		From("users").
		Where(where).
		ToSql()
	if err != nil {
		return nil, err
	}

	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrUserNotFound
		}
		return nil, err
	}
	if user.Capabilities, err = s.GetCapabilities(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, req *account.CreateUserRequest, passwordHash string) (*account.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	query, args, err := s.qb.
		Insert("users").
		Columns("username", "password_hash", "nickname", "created_at", "updated_at").
		Values(req.Username, passwordHash, req.Nickname, now, now).
		ToSql()
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, account.ErrUsernameExists
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := s.insertCapabilities(ctx, tx, id, req.Capabilities); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, req *account.UpdateUserRequest, passwordHash *string) (*account.User, error) {
	builder := s.qb.Update("users").Set("updated_at", time.Now()).Where(sq.Eq{"id": id})
	if req.Nickname != nil {
		builder = builder.Set("nickname", *req.Nickname)
	}
	if passwordHash != nil {
		builder = builder.Set("password_hash", *passwordHash)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, account.ErrUserNotFound
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// DeleteUser는 사용자 행을 지웁니다. 권한 행은 외래 키 cascade로 함께 삭제됩니다.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	query, args, err := s.qb.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

func (s *Store) CountUsersWithCapability(ctx context.Context, capability string) (int, error) {
	query, args, err := s.qb.
		Select("COUNT(*)").
		From("user_capabilities").
		Where(sq.Eq{"capability": capability}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) GetCapabilities(ctx context.Context, userID int64) ([]string, error) {
	query, args, err := s.qb.
		Select("capability").
		From("user_capabilities").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("capability ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var capability string
		if err := rows.Scan(&capability); err != nil {
			return nil, err
		}
		result = append(result, capability)
	}
	return result, rows.Err()
}

func (s *Store) ReplaceCapabilities(ctx context.Context, userID int64, capabilities []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deleteQuery, deleteArgs, err := s.qb.Delete("user_capabilities").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return err
	}
	if err := s.insertCapabilities(ctx, tx, userID, capabilities); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) insertCapabilities(ctx context.Context, tx *sql.Tx, userID int64, capabilities []string) error {
	if len(capabilities) == 0 {
		return nil
	}
	builder := s.qb.Insert("user_capabilities").Columns("user_id", "capability")
	for _, capability := range capabilities {
		builder = builder.Values(userID, capability)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store capabilities: %w", err)
	}
	return nil
}
