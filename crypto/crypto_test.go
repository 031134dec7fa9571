package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestNewAESEncryptorKeyValidation(t *testing.T) {
	if _, err := NewAESEncryptor(""); err == nil {
		t.Errorf("expected error for empty key")
	}
	if _, err := NewAESEncryptor("not-base64!!"); err == nil {
		t.Errorf("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := NewAESEncryptor(short); err == nil {
		t.Errorf("expected error for a key that is not 32 bytes")
	}
	if _, err := NewAESEncryptor(testKey(t)); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor: %v", err)
	}
	plaintext := `[{"name":"session","value":"abc","domain":"chat.example.com"}]`

	ct, err := EncryptString(enc, plaintext)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if ct == plaintext || strings.Contains(ct, "session") {
		t.Errorf("ciphertext leaks plaintext")
	}

	got, err := DecryptString(enc, ct)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip = %q, want %q", got, plaintext)
	}
}

func TestEncryptProducesFreshNonces(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	a, err := EncryptString(enc, "same payload")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	b, err := EncryptString(enc, "same payload")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if a == b {
		t.Errorf("two encryptions of the same payload are identical; nonce reuse?")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	ct, err := enc.Encrypt([]byte("cookie jar"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := enc.Decrypt(ct); err == nil {
		t.Errorf("tampered ciphertext decrypted without error")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	enc1, _ := NewAESEncryptor(testKey(t))
	other := base64.StdEncoding.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
	enc2, _ := NewAESEncryptor(other)

	ct, err := EncryptString(enc1, "secret")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if _, err := DecryptString(enc2, ct); err == nil {
		t.Errorf("ciphertext decrypted with the wrong key")
	}
}

func TestEmptyStringsPassThrough(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	if ct, err := EncryptString(enc, ""); err != nil || ct != "" {
		t.Errorf("EncryptString(\"\") = %q, %v; want empty, nil", ct, err)
	}
	if pt, err := DecryptString(enc, ""); err != nil || pt != "" {
		t.Errorf("DecryptString(\"\") = %q, %v; want empty, nil", pt, err)
	}
}
