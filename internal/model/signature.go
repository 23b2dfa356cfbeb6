package model

import "time"

// Signature records a signer's mark on one field. At most one signature
// exists per field.
//
// Fields:
//  SignatureData – opaque payload (typically an encoded image); never placed in the ledger.
//  SignatureHash – SHA-256 hex of SignatureData; this is what the ledger records.
type Signature struct {
	ID            string    `json:"id"`             // signatures.id
	SignerID      string    `json:"signer_id"`      // signatures.signer_id
	DocumentID    string    `json:"document_id"`    // signatures.document_id
	FieldID       string    `json:"field_id"`       // signatures.field_id
	SignatureData string    `json:"-"`              // signatures.signature_data
	SignatureHash string    `json:"signature_hash"` // signatures.signature_hash
	IPAddress     string    `json:"ip_address"`     // signatures.ip_address
	UserAgent     string    `json:"user_agent"`     // signatures.user_agent
	CreatedAt     time.Time `json:"created_at"`     // signatures.created_at
}
