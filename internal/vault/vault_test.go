package vault

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	v, err := New("test-secret")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sealed, err := v.Encrypt("1//refresh-token")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if sealed == "1//refresh-token" {
		t.Fatal("expected ciphertext to differ from plaintext")
	}
	again, _ := v.Encrypt("1//refresh-token")
	if again == sealed {
		t.Fatal("expected a fresh nonce per encryption")
	}

	plain, err := v.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plain != "1//refresh-token" {
		t.Fatalf("expected original token, got %q", plain)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	a, _ := New("key-a")
	b, _ := New("key-b")
	sealed, err := a.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := b.Decrypt(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	v, _ := New("key")
	for _, in := range []string{"not base64!", "c2hvcnQ="} {
		if _, err := v.Decrypt(in); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("Decrypt(%q): expected ErrDecrypt, got %v", in, err)
		}
	}
	if plain, err := v.Decrypt(""); err != nil || plain != "" {
		t.Fatalf("expected empty result for empty ciphertext, got %q %v", plain, err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
