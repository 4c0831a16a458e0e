package internal

import (
	"strings"
	"testing"
)

func TestResetTokenDigest(t *testing.T) {
	token, digest, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if len(token) != 43 {
		t.Fatalf("expected 43-char base64url token, got %d", len(token))
	}
	if DigestToken(token) != digest {
		t.Fatal("digest must be reproducible from the token")
	}
	if strings.Contains(digest, token) || len(digest) != 64 {
		t.Fatalf("unexpected digest %q", digest)
	}

	other, _, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if other == token {
		t.Fatal("tokens must differ")
	}
}

// FuzzParseSessionID checks that arbitrary input never panics and that any
// accepted id round-trips.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("!!!not-base64!!!")
	f.Add("AAAAAAAAAAAAAAAAAAAAAA")
	if sid, err := NewSessionID(); err == nil {
		f.Add(sid.String())
	}

	f.Fuzz(func(t *testing.T, input string) {
		sid, err := ParseSessionID(input)
		if err != nil {
			return
		}
		again, err := ParseSessionID(sid.String())
		if err != nil {
			t.Fatalf("re-parse failed: %v", err)
		}
		if again != sid {
			t.Fatalf("round trip mismatch: %x != %x", again, sid)
		}
	})
}
