package interfaces

import "github.com/ynotnauk/go-irc/entities"

type AuthStorer interface {
	GetByNetworkId(networkId string) (*entities.AuthRecord, error)
	UpdateByNetworkId(auth *entities.AuthRecord) error
	DeleteByNetworkId(networkId string) error
}

type CredentialProvider interface {
	GetAccountAndPassword(network *entities.NetworkConfig) (string, string, error)
}
