package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// DefaultVaultPath is where the encrypted configuration lives unless the
// caller overrides it.
const DefaultVaultPath = ".transactlab/vault.enc"

// Key derivation and cipher parameters. They are recorded in the envelope,
// so vaults written with older parameters stay readable if these move.
const (
	vaultVersion        = 1
	vaultKDF            = "argon2id"
	vaultCipher         = "aes-256-gcm"
	kdfTime      uint32 = 3
	kdfMemoryKiB uint32 = 64 * 1024
	kdfThreads   uint8  = 4
	kdfKeyLen    uint32 = 32
	saltLen             = 16
)

// vaultEnvelope is the on-disk vault format. Everything needed to decrypt
// travels alongside the ciphertext; []byte fields serialize as base64.
type vaultEnvelope struct {
	Version   int    `json:"v"`
	KDF       string `json:"kdf"`
	Salt      []byte `json:"salt"`
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memoryKiB"`
	Threads   uint8  `json:"threads"`
	Cipher    string `json:"cipher"`
	Nonce     []byte `json:"nonce"`
	Data      []byte `json:"data"`
}

// SealVault encrypts cfg under a key derived from password and writes the
// envelope to path atomically. A fresh random salt and nonce are drawn on
// every seal; salts and nonces are never reused across writes.
func SealVault(cfg *Config, path, password string) error {
	if password == "" {
		return NewError(ErrCodeInvalid, "vault password must not be empty", nil)
	}
	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, kdfTime, kdfMemoryKiB, kdfThreads, kdfKeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to initialize AEAD: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	envelope := vaultEnvelope{
		Version:   vaultVersion,
		KDF:       vaultKDF,
		Salt:      salt,
		Time:      kdfTime,
		MemoryKiB: kdfMemoryKiB,
		Threads:   kdfThreads,
		Cipher:    vaultCipher,
		Nonce:     nonce,
		Data:      gcm.Seal(nil, nonce, plaintext, nil),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to serialize vault envelope: %w", err)
	}
	return writeFileAtomic(path, raw, 0o600)
}

// OpenVault reads and decrypts the vault at path. A wrong password,
// truncation, or any modification of the ciphertext fails the GCM
// authentication check; partially decrypted data is never returned.
func OpenVault(path, password string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewError(ErrCodeVaultDecrypt, fmt.Sprintf("reading vault at %s", path), err)
	}
	var envelope vaultEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, NewError(ErrCodeVaultDecrypt, "vault file is not a valid envelope", err)
	}
	if envelope.KDF != vaultKDF || envelope.Cipher != vaultCipher {
		return nil, NewError(ErrCodeVaultDecrypt,
			fmt.Sprintf("unsupported vault parameters %s/%s", envelope.KDF, envelope.Cipher), nil)
	}
	if password == "" {
		return nil, NewError(ErrCodeVaultDecrypt, "vault exists but no password was supplied", nil)
	}

	key := argon2.IDKey([]byte(password), envelope.Salt, envelope.Time, envelope.MemoryKiB, envelope.Threads, kdfKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewError(ErrCodeVaultDecrypt, "failed to initialize cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewError(ErrCodeVaultDecrypt, "failed to initialize AEAD", err)
	}
	// A wrong password and a tampered file are indistinguishable here; both
	// fail the authentication tag.
	plaintext, err := gcm.Open(nil, envelope.Nonce, envelope.Data, nil)
	if err != nil {
		return nil, NewError(ErrCodeVaultDecrypt, "vault decryption failed", err)
	}

	var cfg Config
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil, NewError(ErrCodeVaultDecrypt, "vault contents are not a valid configuration", err)
	}
	return &cfg, nil
}

// VaultExists reports whether a vault file is present at path.
func VaultExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so a crash mid-write never corrupts a valid vault.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("failed to create temp vault file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write vault: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set vault permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close vault file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace vault: %w", err)
	}
	return nil
}
