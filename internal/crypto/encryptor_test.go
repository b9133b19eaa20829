// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package crypto

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newTestCipher(t *testing.T) *AESGCM {
	t.Helper()
	c, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNewRejectsBadKeySizes(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		if _, err := New(make([]byte, size)); !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("key size %d: expected ErrInvalidKeySize, got %v", size, err)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	cases := [][]byte{
		[]byte("hello"),
		{},
		[]byte("a"),
		bytes.Repeat([]byte{0xff}, 1<<16),
		{0x00, 0x01, 0x02},
	}

	for _, plaintext := range cases {
		blob, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}

		got, err := c.Decrypt(blob)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}

		if !bytes.Equal(got, plaintext) {
			t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(plaintext))
		}
	}
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	c := newTestCipher(t)

	if _, err := c.Decrypt([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
	if _, err := c.Decrypt(nil); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for nil blob, got %v", err)
	}
}

// Flipping any bit must make decryption fail with an authentication error,
// never silently return altered plaintext.
func TestDecryptDetectsTampering(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt([]byte("sensitive payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for i := range blob {
		tampered := make([]byte, len(blob))
		copy(tampered, blob)
		tampered[i] ^= 0x01

		if _, err := c.Decrypt(tampered); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("bit flip at byte %d: expected ErrDecryptionFailed, got %v", i, err)
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	otherKey := testKey(t)
	otherKey[0] ^= 0xff
	other, err := New(otherKey)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := other.Decrypt(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with wrong key, got %v", err)
	}
}

// Encrypting the same plaintext twice must yield different ciphertexts
// because every call draws a fresh random nonce.
func TestNonceUniqueness(t *testing.T) {
	c := newTestCipher(t)
	plaintext := []byte("identical input")

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		blob, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		nonce := string(blob[:NonceSize])
		if seen[nonce] {
			t.Fatal("nonce reused across encryptions")
		}
		seen[nonce] = true
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	c := newTestCipher(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "plain.db")
	enc := filepath.Join(dir, "plain.db.enc")
	out := filepath.Join(dir, "restored.db")

	content := bytes.Repeat([]byte("snapshot-bytes-"), 1024)
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	written, err := c.EncryptFile(src, enc)
	if err != nil {
		t.Fatalf("EncryptFile failed: %v", err)
	}
	if expected := int64(len(content) + NonceSize + 16); written != expected {
		t.Errorf("expected %d bytes written, got %d", expected, written)
	}

	restored, err := c.DecryptFile(enc, out)
	if err != nil {
		t.Fatalf("DecryptFile failed: %v", err)
	}
	if restored != int64(len(content)) {
		t.Errorf("expected %d plaintext bytes, got %d", len(content), restored)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("restored file content mismatch")
	}
}

func TestEncryptFileMissingSource(t *testing.T) {
	c := newTestCipher(t)
	dir := t.TempDir()

	if _, err := c.EncryptFile(filepath.Join(dir, "missing"), filepath.Join(dir, "out")); err == nil {
		t.Error("expected error for missing source file")
	}
}

func TestDeriveKey(t *testing.T) {
	key1, err := DeriveKey("correct horse battery staple")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(key1) != KeySize {
		t.Fatalf("expected %d-byte key, got %d", KeySize, len(key1))
	}

	// Deterministic for the same passphrase.
	key2, err := DeriveKey("correct horse battery staple")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase produced different keys")
	}

	// Distinct for a different passphrase.
	key3, err := DeriveKey("another passphrase")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if bytes.Equal(key1, key3) {
		t.Error("different passphrases produced the same key")
	}

	if _, err := DeriveKey(""); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("expected ErrEmptyPassphrase, got %v", err)
	}
}
