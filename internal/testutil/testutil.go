// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/signvault/internal/database"
	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/repository"
)

// SetupTestDB opens a fresh SQLite database in a temp dir with the full schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "signvault.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, database.DialectSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

// MySQLDSNEnv names the variable holding the DSN of a disposable MySQL
// database. Tests that need real row locks and a multi-connection pool skip
// when it is unset, e.g.
//
//	SIGNVAULT_TEST_MYSQL_DSN='root:secret@tcp(127.0.0.1:3306)/signvault_test' go test ./...
const MySQLDSNEnv = "SIGNVAULT_TEST_MYSQL_DSN"

// SetupMySQLTestDB opens a pooled MySQL connection with the full schema, or
// skips the test when MySQLDSNEnv is unset.
func SetupMySQLTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv(MySQLDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping MySQL-backed test", MySQLDSNEnv)
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("Invalid %s: %v", MySQLDSNEnv, err)
	}
	db, err := database.OpenMySQL(cfg)
	if err != nil {
		t.Fatalf("Failed to open MySQL: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, database.DialectMySQL); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

// CreateTempOwner inserts an owner with a unique email and removes it, with
// its documents, when the test ends. Use it on databases shared between runs.
func CreateTempOwner(t *testing.T, db *sql.DB) *model.User {
	t.Helper()

	u := CreateOwner(t, db, "owner-"+uuid.NewString()[:8]+"@example.com")
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = db.ExecContext(ctx, `DELETE FROM documents WHERE owner_id = ?`, u.ID)
		_, _ = db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, u.ID)
	})
	return u
}

// CreateOwner inserts an OWNER user with a cheap bcrypt cost.
func CreateOwner(t *testing.T, db *sql.DB, email string) *model.User {
	t.Helper()

	u, err := repository.NewUserRepo(db).Create(context.Background(), email, "password123", "Owner "+email, model.RoleOwner, 4)
	if err != nil {
		t.Fatalf("Failed to create owner: %v", err)
	}
	return u
}

// Logger returns a logger that writes through t.Log.
func Logger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t)
}
