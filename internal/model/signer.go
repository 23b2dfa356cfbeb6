package model

import "time"

// SignerStatus tracks a signer's progress through a document.
type SignerStatus string

const (
	SignerPending  SignerStatus = "pending"
	SignerSent     SignerStatus = "sent"
	SignerViewed   SignerStatus = "viewed"
	SignerSigned   SignerStatus = "signed"
	SignerDeclined SignerStatus = "declined"
)

var signerTransitions = map[SignerStatus][]SignerStatus{
	SignerPending: {SignerSent, SignerViewed, SignerSigned, SignerDeclined},
	SignerSent:    {SignerViewed, SignerSigned, SignerDeclined},
	SignerViewed:  {SignerSigned, SignerDeclined},
}

// CanTransition reports whether a signer in status s may move to next.
// Signed and Declined are terminal.
func (s SignerStatus) CanTransition(next SignerStatus) bool {
	for _, allowed := range signerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is Signed or Declined.
func (s SignerStatus) Terminal() bool { return len(signerTransitions[s]) == 0 }

// Signer represents a row in the `signers` table.
//
// Fields:
//  AccessToken   – 64 hex chars; the only credential a signer presents. Never logged.
//  OrderIndex    – position in the signing order; ties broken by CreatedAt.
//  IPAddress     – client address captured on view or signing.
//  SignedAt      – set exactly when Status becomes signed.
//  DeclinedAt    – set exactly when Status becomes declined.
//  EmailSentAt   – when the invitation was dispatched.
type Signer struct {
	ID            string       `json:"id"`                       // signers.id
	DocumentID    string       `json:"document_id"`              // signers.document_id
	Email         string       `json:"email"`                    // signers.email
	Name          string       `json:"name"`                     // signers.name
	OrderIndex    int          `json:"order_index"`              // signers.order_index
	Status        SignerStatus `json:"status"`                   // signers.status
	AccessToken   string       `json:"-"`                        // signers.access_token
	IPAddress     *string      `json:"ip_address,omitempty"`     // signers.ip_address (nullable)
	UserAgent     *string      `json:"user_agent,omitempty"`     // signers.user_agent (nullable)
	ViewedAt      *time.Time   `json:"viewed_at,omitempty"`      // signers.viewed_at (nullable)
	SignedAt      *time.Time   `json:"signed_at,omitempty"`      // signers.signed_at (nullable)
	DeclinedAt    *time.Time   `json:"declined_at,omitempty"`    // signers.declined_at (nullable)
	DeclineReason *string      `json:"decline_reason,omitempty"` // signers.decline_reason (nullable)
	EmailSentAt   *time.Time   `json:"email_sent_at,omitempty"`  // signers.email_sent_at (nullable)
	CreatedAt     time.Time    `json:"created_at"`               // signers.created_at
	UpdatedAt     time.Time    `json:"updated_at"`               // signers.updated_at
}

// Label is the actor label used in certificates: "name (email)".
func (s Signer) Label() string { return s.Name + " (" + s.Email + ")" }
