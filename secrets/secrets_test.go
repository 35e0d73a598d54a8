package secrets

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	t.Helper()

	vault, err := NewVault("primary", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return vault
}

func TestVaultRoundTrip(t *testing.T) {
	t.Parallel()

	vault := testVault(t)

	blob, err := vault.EncryptField("repository.githubWebhookSecret", "preserved-secret-456")
	require.NoError(t, err)
	assert.Equal(t, "primary", blob.KeyID)
	assert.NotEmpty(t, blob.Data)
	assert.NotEmpty(t, blob.IV)
	assert.NotEmpty(t, blob.Tag)

	plaintext, err := vault.DecryptField("repository.githubWebhookSecret", blob)
	require.NoError(t, err)
	assert.Equal(t, "preserved-secret-456", plaintext)
}

func TestVaultFieldBinding(t *testing.T) {
	t.Parallel()

	vault := testVault(t)

	blob, err := vault.EncryptField("sourceControlOrg.accessToken", "gho_token")
	require.NoError(t, err)

	// A blob sealed for one field must not open as another.
	_, err = vault.DecryptField("sourceControlOrg.refreshToken", blob)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestVaultKeyMismatch(t *testing.T) {
	t.Parallel()

	vault := testVault(t)

	blob, err := vault.EncryptField("f", "v")
	require.NoError(t, err)
	blob.KeyID = "retired"

	_, err = vault.DecryptField("f", blob)
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestNewVaultValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		keyID         string
		key           []byte
		expectedError string
	}{
		{
			name:          "short key",
			keyID:         "primary",
			key:           []byte("too-short"),
			expectedError: "vault key must be 32 bytes",
		},
		{
			name:          "missing key id",
			key:           make([]byte, KeySize),
			expectedError: "vault key id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewVault(tt.keyID, tt.key)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestNewVaultFromHex(t *testing.T) {
	t.Parallel()

	vault, err := NewVaultFromHex("primary", strings.Repeat("ab", KeySize))
	require.NoError(t, err)

	blob, err := vault.EncryptField("f", "v")
	require.NoError(t, err)
	got, err := vault.DecryptField("f", blob)
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = NewVaultFromHex("primary", "not-hex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hex")
}

func TestGenerateWebhookSecret(t *testing.T) {
	t.Parallel()

	first, err := GenerateWebhookSecret()
	require.NoError(t, err)
	second, err := GenerateWebhookSecret()
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.Equal(t, strings.ToLower(first), first)
	assert.NotEqual(t, first, second)

	_, err = hex.DecodeString(first)
	assert.NoError(t, err)
}

func TestEncryptedBlobScanValue(t *testing.T) {
	t.Parallel()

	vault := testVault(t)
	blob, err := vault.EncryptField("f", "stored")
	require.NoError(t, err)

	value, err := blob.Value()
	require.NoError(t, err)

	var scanned EncryptedBlob
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, blob, scanned)

	plaintext, err := vault.DecryptField("f", scanned)
	require.NoError(t, err)
	assert.Equal(t, "stored", plaintext)

	assert.Error(t, scanned.Scan(42))
}
