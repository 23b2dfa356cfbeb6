package model

import "time"

// Certificate is the sealed summary produced for a completed document.
// CertificateHash covers every other field.
type Certificate struct {
	DocumentID      string                  `json:"document_id"`
	DocumentTitle   string                  `json:"document_title"`
	DocumentHash    string                  `json:"document_hash"`
	CreatedAt       time.Time               `json:"created_at"`
	CompletedAt     time.Time               `json:"completed_at"`
	Signers         []CertificateSigner     `json:"signers"`
	AuditTrail      []CertificateAuditEntry `json:"audit_trail"`
	CertificateHash string                  `json:"certificate_hash"`
	GeneratedAt     time.Time               `json:"generated_at"`
}

// CertificateSigner summarises one signer who signed.
type CertificateSigner struct {
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	SignedAt      time.Time `json:"signed_at"`
	IPAddress     string    `json:"ip_address"`
	SignatureHash string    `json:"signature_hash"`
}

// CertificateAuditEntry is the rendering of one ledger entry.
type CertificateAuditEntry struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress *string   `json:"ip_address,omitempty"`
	Details   *string   `json:"details,omitempty"`
}
