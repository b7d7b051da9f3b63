package service

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"testing"

	"tutor-ledger/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Valid 32-byte key in hex (64 chars)
const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAESEncryptionService_NewInvalidKey(t *testing.T) {
	_, err := NewAESEncryptionService("shortkey")
	assert.Error(t, err)

	_, err = NewAESEncryptionService("0123456789abcdef")
	assert.ErrorContains(t, err, "32 bytes")
}

var _ ports.EncryptionService = (*AESEncryptionService)(nil)

// Rows are sealed by the account service; decrypt what it would write:
// hex(12-byte nonce || GCM ciphertext) under the shared key.
func TestAESEncryptionService_DecryptsExternallySealedAccount(t *testing.T) {
	key, err := hex.DecodeString(testAESKey)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)

	nonce := []byte("fixed-nonce!")
	require.Len(t, nonce, aead.NonceSize())
	stored := hex.EncodeToString(aead.Seal(nonce, nonce, []byte("0123456789"), nil))

	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	var dec ports.EncryptionService = svc

	plain, err := dec.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", plain)
}

func TestAESEncryptionService_AccountNumberRoundTrip(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"0123456789", "GB33BUKB20201555555555", ""} {
		ciphertext, err := svc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := svc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestAESEncryptionService_DifferentNonces(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	c1, err := svc.Encrypt("0123456789")
	require.NoError(t, err)
	c2, err := svc.Encrypt("0123456789")
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2)
}

func TestAESEncryptionService_TamperedCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("0123456789")
	require.NoError(t, err)

	raw, err := hex.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = svc.Decrypt(hex.EncodeToString(raw))
	assert.Error(t, err)
}

func TestAESEncryptionService_WrongKey(t *testing.T) {
	svc1, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	svc2, err := NewAESEncryptionService("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")
	require.NoError(t, err)

	ciphertext, err := svc1.Encrypt("0123456789")
	require.NoError(t, err)

	_, err = svc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestAESEncryptionService_InvalidCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	_, err = svc.Decrypt("not-hex-at-all!!!")
	assert.Error(t, err)

	_, err = svc.Decrypt("abcdef")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}
