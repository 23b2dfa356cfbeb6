// Package queue carries signing notifications over RabbitMQ.
package queue

// Queue names. Both are declared durable by the publisher and the consumer.
const (
	SigningRequestedQueue  = "signing.requested"
	DocumentCompletedQueue = "document.completed"
)

// SigningRequestedEvent is published once per signer after a document is
// sent. SigningURL embeds the signer's access token; it is delivered to the
// signer and never written to any log.
type SigningRequestedEvent struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	SignerID      string `json:"signer_id"`
	SignerEmail   string `json:"signer_email"`
	SignerName    string `json:"signer_name"`
	SigningURL    string `json:"signing_url"`
	SenderName    string `json:"sender_name"`
	RequestedAt   string `json:"requested_at"`
}

// Recipient is one addressee of a completion notice.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DocumentCompletedEvent is published when the last signer signs. Recipients
// are the owner and every signer who signed.
type DocumentCompletedEvent struct {
	DocumentID    string      `json:"document_id"`
	DocumentTitle string      `json:"document_title"`
	Recipients    []Recipient `json:"recipients"`
	CompletedAt   string      `json:"completed_at"`
}
