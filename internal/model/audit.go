package model

import "time"

// AuditAction names a ledger event.
type AuditAction string

const (
	ActionDocumentCreated      AuditAction = "document_created"
	ActionDocumentViewed       AuditAction = "document_viewed"
	ActionDocumentSent         AuditAction = "document_sent"
	ActionDocumentCompleted    AuditAction = "document_completed"
	ActionDocumentVoided       AuditAction = "document_voided"
	ActionDocumentExpired      AuditAction = "document_expired"
	ActionDocumentDownloaded   AuditAction = "document_downloaded"
	ActionFieldAdded           AuditAction = "field_added"
	ActionFieldUpdated         AuditAction = "field_updated"
	ActionFieldDeleted         AuditAction = "field_deleted"
	ActionSignerAdded          AuditAction = "signer_added"
	ActionSignerRemoved        AuditAction = "signer_removed"
	ActionSignerEmailSent      AuditAction = "signer_email_sent"
	ActionSignerViewed         AuditAction = "signer_viewed"
	ActionSignerSigned         AuditAction = "signer_signed"
	ActionSignerDeclined       AuditAction = "signer_declined"
	ActionSignatureApplied     AuditAction = "signature_applied"
	ActionCertificateGenerated AuditAction = "certificate_generated"
)

// AuditLogEntry is one immutable link of a document's hash chain.
//
// Fields:
//  Seq          – 1-based position in the document's chain.
//  SignerID     – acting signer, if any.
//  UserID       – acting owner, if any. Both nil means the system acted.
//  Details      – canonical JSON text exactly as hashed.
//  PreviousHash – EntryHash of the preceding entry; nil only for the first.
//  EntryHash    – HashChain over document id, action, CreatedAt, PreviousHash, Details.
type AuditLogEntry struct {
	ID           string      `json:"id"`                      // audit_logs.id
	DocumentID   string      `json:"document_id"`             // audit_logs.document_id
	Seq          int64       `json:"seq"`                     // audit_logs.seq
	SignerID     *string     `json:"signer_id,omitempty"`     // audit_logs.signer_id (nullable)
	UserID       *string     `json:"user_id,omitempty"`       // audit_logs.user_id (nullable)
	Action       AuditAction `json:"action"`                  // audit_logs.action
	IPAddress    *string     `json:"ip_address,omitempty"`    // audit_logs.ip_address (nullable)
	UserAgent    *string     `json:"user_agent,omitempty"`    // audit_logs.user_agent (nullable)
	Details      *string     `json:"details,omitempty"`       // audit_logs.details (nullable)
	PreviousHash *string     `json:"previous_hash,omitempty"` // audit_logs.previous_hash (nullable)
	EntryHash    string      `json:"entry_hash"`              // audit_logs.entry_hash
	CreatedAt    time.Time   `json:"created_at"`              // audit_logs.created_at
}
