// Package utils holds hashing and credential helpers shared across layers.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the canonical text form of every timestamp that feeds a
// hash. Microsecond precision matches what DATETIME(6) columns keep.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// absentField marks an optional field that has no value. It can never collide
// with a present value because present values always carry a length prefix.
const absentField = "-"

// Hash returns the lowercase hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString is Hash for string input.
func HashString(s string) string { return Hash([]byte(s)) }

// HashReader streams r through SHA-256 and returns the hex digest and the
// number of bytes consumed.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// TruncateTimestamp normalises t to UTC with microsecond precision so that it
// survives a round trip through the database unchanged.
func TruncateTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatTimestamp renders t in TimestampLayout after truncation.
func FormatTimestamp(t time.Time) string {
	return TruncateTimestamp(t).Format(TimestampLayout)
}

// HashChain computes an audit entry hash over, in this order, the document
// id, action, timestamp, previous entry hash and details. Optional fields are
// nil when absent.
func HashChain(documentID, action, timestamp string, previousHash, details *string) string {
	return HashString(encodeFields("", &documentID, &action, &timestamp, previousHash, details))
}

// HashCertificate computes the hash that seals a completion certificate.
func HashCertificate(documentID, documentHash, signersJSON, auditJSON, generatedAt string) string {
	return HashString(encodeFields("CERT", &documentID, &documentHash, &signersJSON, &auditJSON, &generatedAt))
}

// NewSigningToken returns a 64 character hex capability token made of two
// random v4 UUIDs.
func NewSigningToken() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return simpleUUID(a) + simpleUUID(b), nil
}

func simpleUUID(u uuid.UUID) string {
	return hex.EncodeToString(u[:])
}

// encodeFields joins fields as "<len>:<value>" separated by '|', with
// absentField standing in for nil fields. A non-empty tag is emitted first.
func encodeFields(tag string, fields ...*string) string {
	var b strings.Builder
	if tag != "" {
		b.WriteString(tag)
		b.WriteByte('|')
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('|')
		}
		if f == nil {
			b.WriteString(absentField)
			continue
		}
		b.WriteString(strconv.Itoa(len(*f)))
		b.WriteByte(':')
		b.WriteString(*f)
	}
	return b.String()
}
