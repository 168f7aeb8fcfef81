package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/secrets"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return NewRegistry(db)
}

func TestGetMissingKey(t *testing.T) {
	registry := setupRegistry(t)

	value, ok, err := registry.Get("does_not_exist")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestSetIsUpsert(t *testing.T) {
	registry := setupRegistry(t)

	require.NoError(t, registry.Set(KeyStockAPIProvider, "alphavantage"))
	require.NoError(t, registry.Set(KeyStockAPIProvider, "twelvedata"))

	value, ok, err := registry.Get(KeyStockAPIProvider)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "twelvedata", value)

	views, err := registry.GetAll()
	assert.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestGetAllRedactsSensitiveKeys(t *testing.T) {
	registry := setupRegistry(t)
	store := secrets.NewStore("test-secret", "test-iv")

	ciphertext, err := store.Encrypt("tg-bot-token-plaintext")
	require.NoError(t, err)
	require.NoError(t, registry.Set(KeyTelegramToken, ciphertext))
	require.NoError(t, registry.Set(KeyStockAPIProvider, "yahoo"))

	views, err := registry.GetAll()
	require.NoError(t, err)
	require.Len(t, views, 2)

	byKey := map[string]SettingView{}
	for _, v := range views {
		byKey[v.Key] = v
	}

	token := byKey[KeyTelegramToken]
	assert.Nil(t, token.Value, "sensitive value must not be listed")
	require.NotNil(t, token.IsSet)
	assert.True(t, *token.IsSet)

	provider := byKey[KeyStockAPIProvider]
	require.NotNil(t, provider.Value)
	assert.Equal(t, "yahoo", *provider.Value)
	assert.Nil(t, provider.IsSet)
}

func TestGetAllNeverExposesPlaintext(t *testing.T) {
	registry := setupRegistry(t)
	store := secrets.NewStore("test-secret", "test-iv")

	for _, key := range []string{KeyStockAPIKey, KeyAIAPIKey, KeyTelegramToken} {
		ciphertext, err := store.Encrypt("secret-" + key)
		require.NoError(t, err)
		require.NoError(t, registry.Set(key, ciphertext))
	}

	views, err := registry.GetAll()
	require.NoError(t, err)
	for _, v := range views {
		assert.Nil(t, v.Value, "key %s leaked a value", v.Key)
		require.NotNil(t, v.IsSet)
		assert.True(t, *v.IsSet)
	}
}

func TestDelete(t *testing.T) {
	registry := setupRegistry(t)

	require.NoError(t, registry.Set(KeyTelegramChatID, "12345"))
	require.NoError(t, registry.Delete(KeyTelegramChatID))
	require.NoError(t, registry.Delete(KeyTelegramChatID)) // idempotent

	_, ok, err := registry.Get(KeyTelegramChatID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive(KeyStockAPIKey))
	assert.True(t, IsSensitive(KeyAIAPIKey))
	assert.True(t, IsSensitive(KeyTelegramToken))
	assert.False(t, IsSensitive(KeyStockAPIProvider))
	assert.False(t, IsSensitive(KeyTelegramChatID))
}
