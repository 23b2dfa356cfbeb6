package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeMarker struct {
	ids []string
	err error
}

func (f *fakeMarker) MarkEmailSent(_ context.Context, signerID string) error {
	f.ids = append(f.ids, signerID)
	return f.err
}

func TestHandleSigningRequestedRedactsToken(t *testing.T) {
	dir := t.TempDir()
	marker := &fakeMarker{}
	c := NewConsumer("amqp://unused", dir, marker, zaptest.NewLogger(t))

	token := "4f2a9c0d8e7b6a5f4f2a9c0d8e7b6a5f4f2a9c0d8e7b6a5f4f2a9c0d8e7b6a5f"
	body, err := json.Marshal(SigningRequestedEvent{
		DocumentID:    "doc-1",
		DocumentTitle: "Lease",
		SignerID:      "signer-1",
		SignerEmail:   "alice@example.com",
		SignerName:    "Alice",
		SigningURL:    "https://sign.example.com/sign/" + token,
		SenderName:    "Owner",
		RequestedAt:   "2026-01-02T03:04:05Z",
	})
	require.NoError(t, err)

	require.NoError(t, c.HandleSigningRequested(context.Background(), body))
	assert.Equal(t, []string{"signer-1"}, marker.ids)

	out, err := os.ReadFile(filepath.Join(dir, "notifications.log"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "document_id=doc-1")
	assert.Contains(t, string(out), "to=alice@example.com")
	assert.NotContains(t, string(out), token)
}

func TestHandleSigningRequestedErrors(t *testing.T) {
	c := NewConsumer("amqp://unused", t.TempDir(), &fakeMarker{err: errors.New("db down")}, zaptest.NewLogger(t))

	assert.Error(t, c.HandleSigningRequested(context.Background(), []byte("{not json")))

	body, _ := json.Marshal(SigningRequestedEvent{DocumentID: "doc-1", SignerID: "signer-1"})
	assert.ErrorContains(t, c.HandleSigningRequested(context.Background(), body), "db down")
}

func TestHandleDocumentCompleted(t *testing.T) {
	dir := t.TempDir()
	c := NewConsumer("amqp://unused", dir, nil, zaptest.NewLogger(t))

	body, err := json.Marshal(DocumentCompletedEvent{
		DocumentID:    "doc-9",
		DocumentTitle: "NDA",
		Recipients:    []Recipient{{Email: "owner@example.com"}, {Email: "bob@example.com"}},
		CompletedAt:   "2026-01-02T03:04:05Z",
	})
	require.NoError(t, err)
	require.NoError(t, c.HandleDocumentCompleted(body))
	require.NoError(t, c.HandleDocumentCompleted(body))

	out, err := os.ReadFile(filepath.Join(dir, "notifications.log"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "to=[owner@example.com,bob@example.com]")
	assert.Equal(t, 2, countLines(string(out)))
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
