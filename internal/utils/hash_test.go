package utils

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func strp(s string) *string { return &s }

func TestHashKnownVector(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashString("abc"))
	assert.Equal(t, Hash([]byte("abc")), HashString("abc"))
}

func TestHashReaderMatchesHash(t *testing.T) {
	payload := strings.Repeat("signvault-", 10000)
	sum, n, err := HashReader(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, HashString(payload), sum)
}

func TestHashChainDeterministic(t *testing.T) {
	a := HashChain("doc", "document_sent", "2024-01-01T00:00:00.000000Z", strp("prev"), strp(`{"signer_count":2}`))
	b := HashChain("doc", "document_sent", "2024-01-01T00:00:00.000000Z", strp("prev"), strp(`{"signer_count":2}`))
	assert.Equal(t, a, b)
	assert.Regexp(t, hex64, a)
}

func TestHashChainDistinguishesFields(t *testing.T) {
	ts := "2024-01-01T00:00:00.000000Z"
	cases := map[string]string{
		"base":            HashChain("doc", "act", ts, nil, nil),
		"with prev":       HashChain("doc", "act", ts, strp("x"), nil),
		"with details":    HashChain("doc", "act", ts, nil, strp("x")),
		"empty prev":      HashChain("doc", "act", ts, strp(""), nil),
		"empty details":   HashChain("doc", "act", ts, nil, strp("")),
		"shifted id":      HashChain("doc:act", "", ts, nil, nil),
		"shifted action":  HashChain("do", "c:act", ts, nil, nil),
		"different ts":    HashChain("doc", "act", "2024-01-01T00:00:00.000001Z", nil, nil),
		"prev and detail": HashChain("doc", "act", ts, strp("x"), strp("x")),
	}
	seen := map[string]string{}
	for name, h := range cases {
		if other, dup := seen[h]; dup {
			t.Fatalf("%q and %q produced the same hash", name, other)
		}
		seen[h] = name
	}
}

func TestHashCertificateTagged(t *testing.T) {
	cert := HashCertificate("doc", "dh", "[]", "[]", "ts")
	chain := HashChain("doc", "dh", "[]", strp("[]"), strp("ts"))
	assert.NotEqual(t, cert, chain)
	assert.Equal(t, cert, HashCertificate("doc", "dh", "[]", "[]", "ts"))
	assert.NotEqual(t, cert, HashCertificate("doc", "dh", "[]", "[]", "ts2"))
}

func TestFormatTimestampTruncatesToMicros(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	in := time.Date(2024, 5, 6, 10, 11, 12, 123456789, loc)
	assert.Equal(t, "2024-05-06T07:11:12.123456Z", FormatTimestamp(in))
	assert.True(t, TruncateTimestamp(in).Equal(time.Date(2024, 5, 6, 7, 11, 12, 123456000, time.UTC)))
}

func TestNewSigningToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		tok, err := NewSigningToken()
		require.NoError(t, err)
		require.Regexp(t, hex64, tok)
		require.False(t, seen[tok], "duplicate token")
		seen[tok] = true
	}
}
