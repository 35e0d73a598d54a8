// Package secrets handles at-rest encryption of integration credentials and
// generation of webhook secrets.
//
// Values are sealed with AES-256-GCM. The logical field name of a value is
// bound into the additional authenticated data, so a blob encrypted for one
// field cannot be decrypted as another.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql/driver"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// WebhookSecretBytes is the number of random bytes in a generated webhook
	// secret. Hex encoding doubles it on the wire.
	WebhookSecretBytes = 32

	// KeySize is the required AES-256 key size in bytes.
	KeySize = 32
)

var (
	// ErrKeyMismatch is returned when a blob was encrypted under a different key.
	ErrKeyMismatch = errors.New("encrypted blob key id does not match vault key")
	// ErrDecryptFailed is returned when a blob fails authentication, including
	// the case where it was encrypted for a different field.
	ErrDecryptFailed = errors.New("failed to decrypt field")
)

// EncryptedBlob is the persisted form of an encrypted value. It is stored as
// JSON in a single database column.
type EncryptedBlob struct {
	Data  string `json:"data"`
	IV    string `json:"iv"`
	Tag   string `json:"tag"`
	KeyID string `json:"keyId"`
}

// Value implements driver.Valuer so blobs can be written through sqlx.
func (b EncryptedBlob) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner so blobs can be read through sqlx.
func (b *EncryptedBlob) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into EncryptedBlob", src)
	}
}

// Vault encrypts and decrypts individual fields under a single named key.
type Vault struct {
	keyID string
	aead  cipher.AEAD
}

// NewVault creates a Vault from a raw 32-byte key. The keyID is recorded on
// every blob so key rotation can tell old blobs apart.
func NewVault(keyID string, key []byte) (*Vault, error) {
	if keyID == "" {
		return nil, errors.New("vault key id is required")
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Vault{keyID: keyID, aead: aead}, nil
}

// NewVaultFromHex creates a Vault from a hex-encoded key, the form the key
// takes in configuration.
func NewVaultFromHex(keyID, hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("vault key must be hex encoded: %w", err)
	}
	return NewVault(keyID, key)
}

// EncryptField seals plaintext for the given logical field.
func (v *Vault) EncryptField(field, plaintext string) (EncryptedBlob, error) {
	if field == "" {
		return EncryptedBlob{}, errors.New("field name is required")
	}

	iv := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return EncryptedBlob{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), []byte(field))
	tagStart := len(sealed) - v.aead.Overhead()

	return EncryptedBlob{
		Data:  base64.StdEncoding.EncodeToString(sealed[:tagStart]),
		IV:    base64.StdEncoding.EncodeToString(iv),
		Tag:   base64.StdEncoding.EncodeToString(sealed[tagStart:]),
		KeyID: v.keyID,
	}, nil
}

// DecryptField opens a blob previously sealed for the same logical field.
func (v *Vault) DecryptField(field string, blob EncryptedBlob) (string, error) {
	if blob.KeyID != v.keyID {
		return "", fmt.Errorf("%w: blob has key id %q", ErrKeyMismatch, blob.KeyID)
	}

	data, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		return "", fmt.Errorf("%w: malformed data: %w", ErrDecryptFailed, err)
	}
	iv, err := base64.StdEncoding.DecodeString(blob.IV)
	if err != nil {
		return "", fmt.Errorf("%w: malformed iv: %w", ErrDecryptFailed, err)
	}
	tag, err := base64.StdEncoding.DecodeString(blob.Tag)
	if err != nil {
		return "", fmt.Errorf("%w: malformed tag: %w", ErrDecryptFailed, err)
	}

	plaintext, err := v.aead.Open(nil, iv, append(data, tag...), []byte(field))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptFailed, field)
	}
	return string(plaintext), nil
}

// GenerateWebhookSecret returns a new webhook secret: 32 bytes from a
// cryptographically secure source, encoded as 64 lowercase hex characters.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, WebhookSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
