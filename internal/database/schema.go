package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates every table the service needs. It is safe to call on each
// start because all statements use IF NOT EXISTS.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var stmts []string
	switch dialect {
	case DialectMySQL:
		stmts = mysqlSchema
	case DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unknown dialect %q", dialect)
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}

// mysqlSchema keeps microsecond precision on timestamps because audit entry
// hashes cover the stored created_at.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id CHAR(36) NOT NULL PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    role VARCHAR(16) NOT NULL DEFAULT 'OWNER',
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
    id CHAR(36) NOT NULL PRIMARY KEY,
    user_id CHAR(36) NOT NULL,
    token_hash CHAR(64) NOT NULL,
    expires_at DATETIME(6) NOT NULL,
    revoked_at DATETIME(6) NULL,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_refresh_token_hash (token_hash),
    KEY idx_refresh_user (user_id),
    CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS documents (
    id CHAR(36) NOT NULL PRIMARY KEY,
    owner_id CHAR(36) NOT NULL,
    title VARCHAR(255) NOT NULL,
    original_filename VARCHAR(512) NOT NULL,
    file_hash CHAR(64) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'draft',
    self_sign_only TINYINT(1) NOT NULL DEFAULT 0,
    total_signers INT NOT NULL DEFAULT 0,
    completed_signers INT NOT NULL DEFAULT 0,
    expires_at DATETIME(6) NULL,
    completed_at DATETIME(6) NULL,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    KEY idx_documents_owner (owner_id, created_at),
    KEY idx_documents_status (status, expires_at),
    CONSTRAINT chk_documents_counters CHECK (completed_signers >= 0 AND completed_signers <= total_signers),
    CONSTRAINT fk_documents_owner FOREIGN KEY (owner_id) REFERENCES users(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS signers (
    id CHAR(36) NOT NULL PRIMARY KEY,
    document_id CHAR(36) NOT NULL,
    email VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    order_index INT NOT NULL DEFAULT 0,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    access_token CHAR(64) NOT NULL,
    ip_address VARCHAR(64) NULL,
    user_agent VARCHAR(512) NULL,
    viewed_at DATETIME(6) NULL,
    signed_at DATETIME(6) NULL,
    declined_at DATETIME(6) NULL,
    decline_reason TEXT NULL,
    email_sent_at DATETIME(6) NULL,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_signers_token (access_token),
    KEY idx_signers_document (document_id, order_index),
    CONSTRAINT fk_signers_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS document_fields (
    id CHAR(36) NOT NULL PRIMARY KEY,
    document_id CHAR(36) NOT NULL,
    signer_id CHAR(36) NULL,
    field_type VARCHAR(16) NOT NULL,
    page INT NOT NULL,
    x DOUBLE NOT NULL,
    y DOUBLE NOT NULL,
    width DOUBLE NOT NULL,
    height DOUBLE NOT NULL,
    value TEXT NULL,
    font_size INT NOT NULL DEFAULT 12,
    font_family VARCHAR(64) NOT NULL DEFAULT 'Arial',
    date_format VARCHAR(32) NOT NULL DEFAULT 'YYYY-MM-DD',
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    KEY idx_fields_document (document_id, page),
    CONSTRAINT fk_fields_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
    CONSTRAINT fk_fields_signer FOREIGN KEY (signer_id) REFERENCES signers(id) ON DELETE SET NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS signatures (
    id CHAR(36) NOT NULL PRIMARY KEY,
    signer_id CHAR(36) NOT NULL,
    document_id CHAR(36) NOT NULL,
    field_id CHAR(36) NOT NULL,
    signature_data MEDIUMTEXT NOT NULL,
    signature_hash CHAR(64) NOT NULL,
    ip_address VARCHAR(64) NOT NULL,
    user_agent VARCHAR(512) NOT NULL,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_signatures_field (field_id),
    KEY idx_signatures_signer (signer_id),
    CONSTRAINT fk_signatures_signer FOREIGN KEY (signer_id) REFERENCES signers(id) ON DELETE CASCADE,
    CONSTRAINT fk_signatures_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
    CONSTRAINT fk_signatures_field FOREIGN KEY (field_id) REFERENCES document_fields(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
    id CHAR(36) NOT NULL PRIMARY KEY,
    document_id CHAR(36) NOT NULL,
    seq BIGINT NOT NULL,
    signer_id CHAR(36) NULL,
    user_id CHAR(36) NULL,
    action VARCHAR(32) NOT NULL,
    ip_address VARCHAR(64) NULL,
    user_agent VARCHAR(512) NULL,
    details TEXT NULL,
    previous_hash CHAR(64) NULL,
    entry_hash CHAR(64) NOT NULL,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_audit_document_seq (document_id, seq),
    CONSTRAINT fk_audit_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// sqliteSchema mirrors mysqlSchema. Column types are declared as DATETIME so
// the driver scans them back into time.Time.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'OWNER',
    is_active BOOLEAN NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    token_hash TEXT NOT NULL UNIQUE,
    expires_at DATETIME NOT NULL,
    revoked_at DATETIME,
    created_at DATETIME NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS documents (
    id TEXT NOT NULL PRIMARY KEY,
    owner_id TEXT NOT NULL REFERENCES users(id),
    title TEXT NOT NULL,
    original_filename TEXT NOT NULL,
    file_hash TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    self_sign_only BOOLEAN NOT NULL DEFAULT 0,
    total_signers INTEGER NOT NULL DEFAULT 0,
    completed_signers INTEGER NOT NULL DEFAULT 0,
    expires_at DATETIME,
    completed_at DATETIME,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    CHECK (completed_signers >= 0 AND completed_signers <= total_signers)
)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status, expires_at)`,

	`CREATE TABLE IF NOT EXISTS signers (
    id TEXT NOT NULL PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    name TEXT NOT NULL,
    order_index INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending',
    access_token TEXT NOT NULL UNIQUE,
    ip_address TEXT,
    user_agent TEXT,
    viewed_at DATETIME,
    signed_at DATETIME,
    declined_at DATETIME,
    decline_reason TEXT,
    email_sent_at DATETIME,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_signers_document ON signers(document_id, order_index)`,

	`CREATE TABLE IF NOT EXISTS document_fields (
    id TEXT NOT NULL PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    signer_id TEXT REFERENCES signers(id) ON DELETE SET NULL,
    field_type TEXT NOT NULL,
    page INTEGER NOT NULL,
    x REAL NOT NULL,
    y REAL NOT NULL,
    width REAL NOT NULL,
    height REAL NOT NULL,
    value TEXT,
    font_size INTEGER NOT NULL DEFAULT 12,
    font_family TEXT NOT NULL DEFAULT 'Arial',
    date_format TEXT NOT NULL DEFAULT 'YYYY-MM-DD',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fields_document ON document_fields(document_id, page)`,

	`CREATE TABLE IF NOT EXISTS signatures (
    id TEXT NOT NULL PRIMARY KEY,
    signer_id TEXT NOT NULL REFERENCES signers(id) ON DELETE CASCADE,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    field_id TEXT NOT NULL UNIQUE REFERENCES document_fields(id) ON DELETE CASCADE,
    signature_data TEXT NOT NULL,
    signature_hash TEXT NOT NULL,
    ip_address TEXT NOT NULL,
    user_agent TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_signatures_signer ON signatures(signer_id)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT NOT NULL PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    signer_id TEXT,
    user_id TEXT,
    action TEXT NOT NULL,
    ip_address TEXT,
    user_agent TEXT,
    details TEXT,
    previous_hash TEXT,
    entry_hash TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    UNIQUE (document_id, seq)
)`,
}
