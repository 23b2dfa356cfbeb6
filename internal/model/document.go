package model

import "time"

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	DocumentDraft     DocumentStatus = "draft"
	DocumentPending   DocumentStatus = "pending"
	DocumentCompleted DocumentStatus = "completed"
	DocumentVoided    DocumentStatus = "voided"
	DocumentExpired   DocumentStatus = "expired"
)

// documentTransitions lists every allowed status change. Completed, Voided
// and Expired are terminal.
var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentDraft:   {DocumentPending, DocumentVoided},
	DocumentPending: {DocumentCompleted, DocumentVoided, DocumentExpired},
}

// CanTransition reports whether a document in status s may move to next.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	for _, allowed := range documentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s DocumentStatus) Terminal() bool { return len(documentTransitions[s]) == 0 }

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentDraft, DocumentPending, DocumentCompleted, DocumentVoided, DocumentExpired:
		return true
	}
	return false
}

// Document represents a row in the `documents` table: a file submitted for
// signature together with its lifecycle state and signing counters.
//
// Fields:
//  ID               – primary key (UUID).
//  OwnerID          – user who uploaded the document.
//  Title            – display title, 1..255 characters.
//  OriginalFilename – name of the uploaded file.
//  FileHash         – SHA-256 hex digest of the uploaded bytes.
//  Status           – lifecycle state.
//  SelfSignOnly     – owner signs alone; no external signers may be added.
//  TotalSigners     – signers registered when the document was sent.
//  CompletedSigners – signers that have signed; never exceeds TotalSigners.
//  ExpiresAt        – optional deadline after which a pending document expires.
//  CompletedAt      – set exactly when Status becomes completed.
type Document struct {
	ID               string         `json:"id"`                     // documents.id
	OwnerID          string         `json:"owner_id"`               // documents.owner_id
	Title            string         `json:"title"`                  // documents.title
	OriginalFilename string         `json:"original_filename"`      // documents.original_filename
	FileHash         string         `json:"file_hash"`              // documents.file_hash
	Status           DocumentStatus `json:"status"`                 // documents.status
	SelfSignOnly     bool           `json:"self_sign_only"`         // documents.self_sign_only
	TotalSigners     int            `json:"total_signers"`          // documents.total_signers
	CompletedSigners int            `json:"completed_signers"`      // documents.completed_signers
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`   // documents.expires_at (nullable)
	CompletedAt      *time.Time     `json:"completed_at,omitempty"` // documents.completed_at (nullable)
	CreatedAt        time.Time      `json:"created_at"`             // documents.created_at
	UpdatedAt        time.Time      `json:"updated_at"`             // documents.updated_at
}

// Overdue reports whether the document has an expiry at or before now.
func (d Document) Overdue(now time.Time) bool {
	return d.ExpiresAt != nil && !d.ExpiresAt.After(now)
}

// DocumentDetail bundles a document with its fields and signers for the
// owner-facing detail view.
type DocumentDetail struct {
	Document
	Fields  []Field  `json:"fields"`
	Signers []Signer `json:"signers"`
}
