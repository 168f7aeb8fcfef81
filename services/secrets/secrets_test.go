package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	store := NewStore("test-secret", "test-iv-seed")

	for _, plaintext := range []string{
		"sk-1234567890abcdef",
		"7005123456:AAHsampletoken",
		"",
		"unicode ключ 値",
		"exactly 16 bytes",
	} {
		enc, err := store.Encrypt(plaintext)
		assert.NoError(t, err)
		assert.NotEqual(t, plaintext, enc)

		dec, ok := store.Decrypt(enc)
		assert.True(t, ok)
		assert.Equal(t, plaintext, dec)
	}
}

func TestDecryptNeverPanics(t *testing.T) {
	store := NewStore("test-secret", "test-iv-seed")

	for _, garbage := range []string{
		"",
		"not-base64!!!",
		"YWJj", // valid base64, not block-aligned
		"YWJjZGVmZ2hpamtsbW5vcA==", // block-aligned, random bytes
	} {
		dec, ok := store.Decrypt(garbage)
		assert.False(t, ok, "input %q should not decrypt", garbage)
		assert.Empty(t, dec)
	}
}

func TestDecryptWithWrongKeyIsAbsent(t *testing.T) {
	enc, err := NewStore("key-one", "iv-one").Encrypt("api-key-value")
	assert.NoError(t, err)

	_, ok := NewStore("key-two", "iv-one").Decrypt(enc)
	assert.False(t, ok)
}

func TestCorruptedCiphertextIsAbsent(t *testing.T) {
	store := NewStore("test-secret", "test-iv-seed")
	enc, err := store.Encrypt("api-key-value")
	assert.NoError(t, err)

	corrupted := "A" + enc[1:]
	_, ok := store.Decrypt(corrupted)
	assert.False(t, ok)
}

func TestVerify(t *testing.T) {
	assert.True(t, NewStore("any-secret", "any-iv").Verify())
}

func TestStableAcrossInstances(t *testing.T) {
	// Same key and IV must decrypt ciphertext produced by an earlier
	// process, since values persist across restarts.
	enc, err := NewStore("shared", "shared-iv").Encrypt("persisted-value")
	assert.NoError(t, err)

	dec, ok := NewStore("shared", "shared-iv").Decrypt(enc)
	assert.True(t, ok)
	assert.Equal(t, "persisted-value", dec)
}
