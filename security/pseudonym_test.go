package security

import (
	"strings"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	p, err := NewPseudonymizer("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	stored, err := p.Hash("12345")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stored, ":") {
		t.Fatalf("stored form %q missing salt delimiter", stored)
	}
	if !p.Verify("12345", stored) {
		t.Fatal("hash must verify against its own input")
	}
	if p.Verify("54321", stored) {
		t.Fatal("different input must not verify")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	p, err := NewPseudonymizer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := p.Hash("12345")
	b, _ := p.Hash("12345")
	if a == b {
		t.Fatal("two hashes of the same value should carry distinct salts")
	}
}

func TestStableIsDeterministic(t *testing.T) {
	p, err := NewPseudonymizer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	if p.Stable("12345") != p.Stable("12345") {
		t.Fatal("stable pseudonym must be deterministic")
	}
	if p.Stable("12345") == p.Stable("54321") {
		t.Fatal("distinct values must not collide")
	}

	other, _ := NewPseudonymizer("other-secret")
	if p.Stable("12345") == other.Stable("12345") {
		t.Fatal("pseudonyms must depend on the secret")
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewPseudonymizer(""); err == nil {
		t.Fatal("empty secret must be rejected")
	}
}
