package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "AliceDev", "alicedev"},
		{"strips separators", "alice_dev", "alicedev"},
		{"strips dots and dashes", "alice.dev-99", "alicedevgg"},
		{"reverses leet", "a1ice", "alice"},
		{"mixed leet and separators", "d4rk_l0rd", "darklord"},
		{"trims whitespace", "  alice ", "alice"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeUsername(tt.input))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Alice@X.Com", "alice@x.com"},
		{"strips plus suffix", "alice+spam@x.com", "alice@x.com"},
		{"collapses local dots", "a.l.i.c.e@gmail.com", "alice@gmail.com"},
		{"keeps domain dots", "alice@mail.example.org", "alice@mail.example.org"},
		{"not an email", "alice", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeEmail(tt.input))
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("alice", "alice"))
	assert.Equal(t, 5, levenshteinDistance("", "alice"))
	assert.Equal(t, 5, levenshteinDistance("alice", ""))
	assert.Equal(t, 1, levenshteinDistance("alice", "alike"))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, similarityRatio("alice", "alice"))
	assert.Equal(t, 0.0, similarityRatio("", ""))
	assert.InDelta(t, 0.8, similarityRatio("alice", "alike"), 0.001)
	assert.Less(t, similarityRatio("alice", "zzz"), 0.3)
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap("security researcher", "security researcher"))
	assert.Equal(t, 0.0, tokenOverlap("alpha beta", "gamma delta"))
	assert.InDelta(t, 1.0/3.0, tokenOverlap("alpha beta", "alpha gamma"), 0.001)
	assert.Equal(t, 0.0, tokenOverlap("", "alpha"))
}

func TestDomainContainment(t *testing.T) {
	assert.Equal(t, 1.0, domainContainment("example.org", "example.org"))
	assert.Equal(t, 1.0, domainContainment("Example.ORG", "example.org"))
	assert.Equal(t, 0.8, domainContainment("mail.example.org", "example.org"))
	assert.Equal(t, 0.8, domainContainment("example.org", "mail.example.org"))
	assert.Equal(t, 0.0, domainContainment("example.org", "example.com"))
	assert.Equal(t, 0.0, domainContainment("", "example.org"))
}

func TestNormalizeRegion(t *testing.T) {
	assert.Equal(t, "germany", normalizeRegion([]string{"Berlin, Germany"}))
	assert.Equal(t, "germany", normalizeRegion([]string{"Hamburg,germany"}))
	assert.Equal(t, "berlin", normalizeRegion([]string{"Berlin"}))
	assert.Equal(t, "", normalizeRegion(nil))
	assert.Equal(t, "", normalizeRegion([]string{"  "}))
	assert.Equal(t, "france", normalizeRegion([]string{"", "Paris, France"}))
}
