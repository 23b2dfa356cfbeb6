package repository

import (
	"database/sql"

	"github.com/iliyamo/signvault/internal/database"
)

// Store bundles every repository over one database handle.
type Store struct {
	DB         *sql.DB
	Documents  *DocumentRepo
	Fields     *FieldRepo
	Signers    *SignerRepo
	Signatures *SignatureRepo
	Audit      *AuditRepo
	Users      *UserRepo
	Tokens     *TokenRepo
}

// NewStore wires all repositories to db.
func NewStore(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{
		DB:         db,
		Documents:  NewDocumentRepo(db, dialect),
		Fields:     NewFieldRepo(db),
		Signers:    NewSignerRepo(db),
		Signatures: NewSignatureRepo(db),
		Audit:      NewAuditRepo(db),
		Users:      NewUserRepo(db),
		Tokens:     NewTokenRepo(db),
	}
}
