package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *FieldCipher {
	t.Helper()
	cipher, err := NewFieldCipher([]byte("test-secret"))
	require.NoError(t, err)
	return cipher
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	cipher := newTestCipher(t)

	for _, plaintext := range []string{
		"plain chunk content",
		"",
		"unicode: héllo wörld 你好",
		"long " + string(make([]byte, 4096)),
	} {
		blob, err := cipher.EncryptField(plaintext)
		require.NoError(t, err)
		assert.Equal(t, 1, blob.V)
		assert.NotEmpty(t, blob.IV)
		assert.NotEmpty(t, blob.Tag)

		decrypted, err := cipher.DecryptField(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestFieldCipher_FreshNoncePerField(t *testing.T) {
	cipher := newTestCipher(t)

	first, err := cipher.EncryptField("same plaintext")
	require.NoError(t, err)
	second, err := cipher.EncryptField("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV, "nonces must be fresh per field")
	assert.NotEqual(t, first.CT, second.CT, "equal plaintexts must not share ciphertext")

	for _, blob := range []EncryptedBlob{first, second} {
		decrypted, err := cipher.DecryptField(blob)
		require.NoError(t, err)
		assert.Equal(t, "same plaintext", decrypted)
	}
}

func TestFieldCipher_TamperDetection(t *testing.T) {
	cipher := newTestCipher(t)

	blob, err := cipher.EncryptField("sensitive")
	require.NoError(t, err)

	tampered := blob
	tampered.Tag = blob.IV // Any wrong tag fails authentication
	_, err = cipher.DecryptField(tampered)
	assert.ErrorIs(t, err, ErrDecrypt)

	wrongVersion := blob
	wrongVersion.V = 2
	_, err = cipher.DecryptField(wrongVersion)
	assert.ErrorIs(t, err, ErrBlobVersion)
}

func TestFieldCipher_WrongKey(t *testing.T) {
	cipher := newTestCipher(t)
	other, err := NewFieldCipher([]byte("different-secret"))
	require.NoError(t, err)

	blob, err := cipher.EncryptField("sensitive")
	require.NoError(t, err)

	_, err = other.DecryptField(blob)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewFieldCipher_RequiresSecret(t *testing.T) {
	_, err := NewFieldCipher(nil)
	assert.Error(t, err)
}
