package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/store"
)

func newProvider(t *testing.T) *StoredCredentialProvider {
	t.Helper()
	authStore, err := store.NewAuthFilesystemStore(t.TempDir())
	require.NoError(t, err)
	provider, err := NewStoredCredentialProvider(authStore)
	require.NoError(t, err)
	return provider
}

func TestConfiguredCredentialsWin(t *testing.T) {
	provider := newProvider(t)
	require.NoError(t, provider.SaveCredentials("libera", "stored", "storedpass"))
	account, password, err := provider.GetAccountAndPassword(&entities.NetworkConfig{
		Name:             "libera",
		NickServAccount:  "configured",
		NickServPassword: "configpass",
	})
	require.NoError(t, err)
	assert.Equal(t, "configured", account)
	assert.Equal(t, "configpass", password)
}

func TestStoredCredentialsFallback(t *testing.T) {
	provider := newProvider(t)
	require.NoError(t, provider.SaveCredentials("libera", "stored", "storedpass"))
	account, password, err := provider.GetAccountAndPassword(&entities.NetworkConfig{Name: "libera"})
	require.NoError(t, err)
	assert.Equal(t, "stored", account)
	assert.Equal(t, "storedpass", password)

	account, password, err = provider.GetAccountAndPassword(&entities.NetworkConfig{Name: "oftc"})
	require.NoError(t, err)
	assert.Empty(t, account)
	assert.Empty(t, password)
}

type brokenStore struct{}

func (brokenStore) GetByNetworkId(networkId string) (*entities.AuthRecord, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) UpdateByNetworkId(auth *entities.AuthRecord) error {
	return errors.New("disk on fire")
}

func (brokenStore) DeleteByNetworkId(networkId string) error {
	return errors.New("disk on fire")
}

func TestStoreErrorsPropagate(t *testing.T) {
	provider, err := NewStoredCredentialProvider(brokenStore{})
	require.NoError(t, err)
	_, _, err = provider.GetAccountAndPassword(&entities.NetworkConfig{Host: "irc.example.net"})
	assert.EqualError(t, err, "disk on fire")
}

func TestCredentialProviderValidation(t *testing.T) {
	_, err := NewStoredCredentialProvider(nil)
	assert.ErrorIs(t, err, ErrNilAuthStore)
	provider := newProvider(t)
	assert.ErrorIs(t, provider.SaveCredentials("", "a", "b"), ErrBlankNetworkId)
	assert.ErrorIs(t, provider.SaveCredentials("net", "a", ""), ErrBlankPassword)
	_, _, err = provider.GetAccountAndPassword(nil)
	assert.ErrorIs(t, err, ErrNilNetworkConfig)
}

func TestForgetCredentials(t *testing.T) {
	provider := newProvider(t)
	require.NoError(t, provider.SaveCredentials("libera", "stored", "storedpass"))
	require.NoError(t, provider.ForgetCredentials("libera"))
	assert.ErrorIs(t, provider.ForgetCredentials(""), ErrBlankNetworkId)

	account, password, err := provider.GetAccountAndPassword(&entities.NetworkConfig{Name: "libera"})
	require.NoError(t, err)
	assert.Empty(t, account)
	assert.Empty(t, password)
}
