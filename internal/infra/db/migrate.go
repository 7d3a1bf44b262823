package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/targets.sql
var seedTargetsSQL string

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS targets (
    id              SERIAL PRIMARY KEY,
    name            TEXT NOT NULL,
    url             TEXT NOT NULL,
    mode            VARCHAR(10) NOT NULL DEFAULT 'text',
    selector        TEXT NOT NULL DEFAULT '',
    pattern         TEXT NOT NULL DEFAULT '',
    active          BOOLEAN DEFAULT TRUE,
    last_checked_at TIMESTAMPTZ,
    last_hash       TEXT NOT NULL DEFAULT '',
    UNIQUE (url, mode, selector, pattern)
)`); err != nil {
		return err
	}

	// パフォーマンス最適化: インデックス追加
	indexes := []string{
		// アクティブターゲット絞り込み用(WHERE active = TRUE)
		`CREATE INDEX IF NOT EXISTS idx_targets_active ON targets(active) WHERE active = TRUE`,
		// チェック順スケジューリング用
		`CREATE INDEX IF NOT EXISTS idx_targets_last_checked_at ON targets(last_checked_at)`,
	}

	// pg_trgm拡張を有効化(ILIKE検索高速化用)
	// エラーを無視(既に存在する場合やスーパーユーザー権限がない場合)
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)

	// ILIKE検索用GINインデックス追加
	searchIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_targets_name_gin ON targets USING gin(name gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_targets_url_gin ON targets USING gin(url gin_trgm_ops)`,
	}
	for _, idx := range searchIndexes {
		// pg_trgm拡張がない場合はエラーになるため無視
		_, _ = db.Exec(idx)
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// mode制約追加
	// PostgreSQL特有の制約構文のため、エラーを無視(既に存在する場合)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_target_mode'
    ) THEN
        ALTER TABLE targets ADD CONSTRAINT chk_target_mode
        CHECK (mode IN ('text', 'css', 'regex', 'feed'));
    END IF;
END $$;
`)

	// シードデータの投入(重複は自動的にスキップ)
	if _, err := db.Exec(seedTargetsSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown rolls back the database schema.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_targets_url_gin`,
		`DROP INDEX IF EXISTS idx_targets_name_gin`,
		`DROP INDEX IF EXISTS idx_targets_last_checked_at`,
		`DROP INDEX IF EXISTS idx_targets_active`,
		`DROP TABLE IF EXISTS targets CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
