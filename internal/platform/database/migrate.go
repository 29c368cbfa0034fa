package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed queries/schema.sql
var schemaDDL string

// Migrate는 스키마를 적용합니다. 모든 구문이 IF NOT EXISTS라 반복 실행해도 안전합니다.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
