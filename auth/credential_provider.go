package auth

import (
	"errors"
	"io/fs"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

var (
	ErrNilAuthStore     error = errors.New("authStore cannot be nil")
	ErrBlankNetworkId   error = errors.New("networkId cannot be blank")
	ErrBlankPassword    error = errors.New("password cannot be blank")
	ErrNilNetworkConfig error = errors.New("network config cannot be nil")
)

// StoredCredentialProvider supplies NickServ credentials. Credentials in the
// network config win; otherwise the stored record for the network is used.
type StoredCredentialProvider struct {
	authStore interfaces.AuthStorer
}

func (a *StoredCredentialProvider) GetAccountAndPassword(network *entities.NetworkConfig) (string, string, error) {
	if network == nil {
		return "", "", ErrNilNetworkConfig
	}
	// Configured credentials first
	if network.NickServPassword != "" {
		return network.NickServAccount, network.NickServPassword, nil
	}
	networkId := networkKey(network)
	if networkId == "" {
		return "", "", nil
	}
	// Then the store, where a missing record means no credentials
	authRecord, err := a.authStore.GetByNetworkId(networkId)
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return authRecord.Account, authRecord.Password, nil
}

// SaveCredentials stores credentials for later connections to networkId.
func (a *StoredCredentialProvider) SaveCredentials(networkId string, account string, password string) error {
	if networkId == "" {
		return ErrBlankNetworkId
	}
	if password == "" {
		return ErrBlankPassword
	}
	return a.authStore.UpdateByNetworkId(&entities.AuthRecord{
		NetworkID: networkId,
		Account:   account,
		Password:  password,
	})
}

// ForgetCredentials drops the stored record for networkId, as after a
// failed identify.
func (a *StoredCredentialProvider) ForgetCredentials(networkId string) error {
	if networkId == "" {
		return ErrBlankNetworkId
	}
	return a.authStore.DeleteByNetworkId(networkId)
}

func networkKey(network *entities.NetworkConfig) string {
	if network.Name != "" {
		return network.Name
	}
	return network.Host
}

func NewStoredCredentialProvider(authStore interfaces.AuthStorer) (*StoredCredentialProvider, error) {
	if authStore == nil {
		return nil, ErrNilAuthStore
	}
	return &StoredCredentialProvider{
		authStore: authStore,
	}, nil
}
