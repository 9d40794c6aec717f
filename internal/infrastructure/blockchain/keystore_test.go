package blockchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptSignerKey_RoundTrip(t *testing.T) {
	privKey := []byte("deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")

	encoded, err := EncryptSignerKey(privKey, "correct-passphrase")
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := DecryptSignerKey(encoded, "correct-passphrase")
	require.NoError(t, err)
	assert.Equal(t, privKey, decoded)
}

func TestDecryptSignerKey_WrongPassphraseFails(t *testing.T) {
	privKey := []byte("some-private-key-bytes")

	encoded, err := EncryptSignerKey(privKey, "correct-passphrase")
	require.NoError(t, err)

	_, err = DecryptSignerKey(encoded, "wrong-passphrase")
	assert.Error(t, err)
}

func TestEncryptSignerKey_SaltVariesPerCall(t *testing.T) {
	privKey := []byte("same-plaintext")

	first, err := EncryptSignerKey(privKey, "pw")
	require.NoError(t, err)
	second, err := EncryptSignerKey(privKey, "pw")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptSignerKey_RejectsTruncatedInput(t *testing.T) {
	_, err := DecryptSignerKey("ab", "pw")
	assert.Error(t, err)
}
