package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createUserTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createAPIKeyTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE api_keys (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		key_fragment TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL,
		last_used_at DATETIME,
		expires_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createRateLimitTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE rate_limits (
		id TEXT PRIMARY KEY,
		identifier TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		request_count INTEGER NOT NULL,
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		max_requests INTEGER NOT NULL,
		window_ms INTEGER NOT NULL,
		last_request DATETIME NOT NULL,
		UNIQUE (identifier, endpoint)
	);`)
}

func createAuditTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE api_audit_logs (
		id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		ip_address TEXT NOT NULL,
		user_agent TEXT NOT NULL,
		api_key_id TEXT,
		user_id TEXT,
		request_params TEXT,
		response_status INTEGER NOT NULL,
		response_time_ms INTEGER NOT NULL,
		error_message TEXT,
		request_bytes INTEGER NOT NULL DEFAULT 0,
		response_bytes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`)
	mustExec(t, db, `CREATE TABLE associations (
		id TEXT PRIMARY KEY,
		ip_address TEXT NOT NULL,
		api_key_id TEXT,
		user_id TEXT,
		hit_count INTEGER NOT NULL,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		last_user_agent TEXT NOT NULL,
		geography TEXT
	);`)
}
