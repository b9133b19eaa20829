// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

// Package crypto provides the AEAD primitive used for every artifact the
// vault writes to disk.
//
// Encryption Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per encryption, prepended to the ciphertext
//   - Optional key derivation from a passphrase using HKDF-SHA256
//
// Blob format (manifest and every component artifact):
//
//	nonce(12 bytes) || AES-256-GCM(ciphertext + tag)
//
// Security Properties:
//   - Confidentiality: AES-256 encryption
//   - Integrity: GCM authentication tag; Decrypt never returns partially
//     decrypted plaintext on a tag mismatch
//   - Nonce uniqueness: every call draws a fresh nonce from crypto/rand,
//     so (key, nonce) reuse is avoided structurally rather than through
//     bookkeeping
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of the AES key in bytes (256 bits).
	KeySize = 32

	// NonceSize is the size of the GCM nonce in bytes.
	NonceSize = 12

	// keyDerivationSalt binds derived keys to this application's backup
	// encryption use case.
	keyDerivationSalt = "snapvault-backup-encryption"

	// keyDerivationInfo is the HKDF info parameter for key derivation.
	keyDerivationInfo = "artifact-encryption-v1"
)

var (
	// ErrInvalidKeySize is returned when the supplied key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be exactly 32 bytes")

	// ErrEncryptionFailed is returned when the underlying cipher fails to seal.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned on an authentication-tag mismatch
	// (tampered data or wrong key - indistinguishable by design).
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")

	// ErrInvalidData is returned when a blob is too short to contain a nonce.
	ErrInvalidData = errors.New("invalid data: blob shorter than nonce")

	// ErrEmptyPassphrase is returned when key derivation is requested with
	// an empty passphrase.
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")
)

// Cipher is the capability the vault consumes. Concrete algorithms can be
// substituted without touching the orchestrator.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
}

// FileCipher extends Cipher with whole-file operations.
type FileCipher interface {
	Cipher
	EncryptFile(src, dst string) (int64, error)
	DecryptFile(src, dst string) (int64, error)
}

// AESGCM implements Cipher using AES-256-GCM with a random nonce per call.
// The key is owned by the instance for its lifetime and is never persisted.
type AESGCM struct {
	aead cipher.AEAD
}

// New creates an AESGCM cipher from a 32-byte key.
func New(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCM{aead: aead}, nil
}

// Encrypt seals plaintext under a freshly generated random nonce and returns
// nonce || ciphertext || tag.
func (c *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce generation: %v", ErrEncryptionFailed, err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. It returns ErrInvalidData when
// the blob cannot contain a nonce and ErrDecryptionFailed when the
// authentication tag does not verify.
func (c *AESGCM) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidData, len(blob))
	}

	nonce := blob[:NonceSize]
	ciphertext := blob[NonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// EncryptFile reads src whole, encrypts it, and writes the blob to dst.
// It returns the number of bytes written. Whole-file buffering is an
// accepted scale limit for the artifact sizes this subsystem handles.
func (c *AESGCM) EncryptFile(src, dst string) (int64, error) {
	plaintext, err := os.ReadFile(src) //nolint:gosec // G304: src is an internal store path
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", src, err)
	}

	blob, err := c.Encrypt(plaintext)
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(dst, blob, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return int64(len(blob)), nil
}

// DecryptFile reads an encrypted blob from src, decrypts it, and writes the
// plaintext to dst. It returns the number of plaintext bytes written.
func (c *AESGCM) DecryptFile(src, dst string) (int64, error) {
	blob, err := os.ReadFile(src) //nolint:gosec // G304: src is an internal backup path
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", src, err)
	}

	plaintext, err := c.Decrypt(blob)
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(dst, plaintext, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return int64(len(plaintext)), nil
}

// DeriveKey derives a 32-byte AES key from a passphrase using HKDF-SHA256
// with a fixed application salt. Used when configuration supplies a
// passphrase instead of a raw key.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	reader := hkdf.New(
		sha256.New,
		[]byte(passphrase),
		[]byte(keyDerivationSalt),
		[]byte(keyDerivationInfo),
	)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}

	return key, nil
}
