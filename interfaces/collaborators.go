package interfaces

import (
	"context"

	"github.com/ynotnauk/go-irc/entities"
)

type CTCPHandler interface {
	HandleCTCP(request *entities.CTCPRequest)
}

type ModeParser interface {
	ParseModes(channel string, modeString string, args []string) []entities.ModeChange
}

type TopicStore interface {
	SetTopic(network string, channel string, topic *entities.TopicInfo) error
	GetTopic(network string, channel string) (*entities.TopicInfo, error)
}

type Sender interface {
	Send(line string) error
}

// Transport carries raw lines without their CRLF terminators.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, network *entities.NetworkConfig) (Transport, error)
}

type ReconnectRegistrar interface {
	Register(connectionID string, network *entities.NetworkConfig)
	Unregister(connectionID string)
}

type ServiceDetector interface {
	Observe(network string, message *entities.IrcMessage)
	ClearCache(network string)
}

type IdentityProfileStore interface {
	GetProfile(profileID string) (*entities.IdentityProfile, error)
}

// MultilineAssembler folds a closed multiline batch into a single message.
type MultilineAssembler interface {
	Assemble(batch *entities.Batch) (*entities.IrcMessage, bool)
}

// EncryptedDMProvider owns every cryptographic operation behind encrypted
// direct messages. Offers and ciphertexts are opaque strings.
type EncryptedDMProvider interface {
	LocalOffer(network string) (string, error)
	AcceptOffer(network string, peer string, offer string) error
	Forget(network string, peer string)
	Encrypt(network string, peer string, plaintext string) (string, error)
	Decrypt(network string, peer string, ciphertext string) (string, error)
}
