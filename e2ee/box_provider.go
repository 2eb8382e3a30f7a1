package e2ee

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/nacl/box"
)

const (
	keySize   = 32
	nonceSize = 24
	offerSize = keySize + ed25519.PublicKeySize + ed25519.SignatureSize
)

type identity struct {
	boxPublic  *[keySize]byte
	boxPrivate *[keySize]byte
	signPublic ed25519.PublicKey
	signKey    ed25519.PrivateKey
}

// BoxProvider implements encrypted direct messages with NaCl box. Each
// network gets its own key pair. An offer is the box public key followed by
// an ed25519 public key and its signature over the box key, base64 encoded.
type BoxProvider struct {
	random io.Reader

	mu         sync.Mutex
	identities map[string]*identity
	shared     map[string]map[string]*[keySize]byte
}

func NewBoxProvider() *BoxProvider {
	return &BoxProvider{
		random:     rand.Reader,
		identities: make(map[string]*identity),
		shared:     make(map[string]map[string]*[keySize]byte),
	}
}

// identityFor must be called with p.mu held.
func (p *BoxProvider) identityFor(network string) (*identity, error) {
	if existing, ok := p.identities[network]; ok {
		return existing, nil
	}
	boxPublic, boxPrivate, err := box.GenerateKey(p.random)
	if err != nil {
		return nil, fmt.Errorf("generate box key: %w", err)
	}
	signPublic, signKey, err := ed25519.GenerateKey(p.random)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	created := &identity{
		boxPublic:  boxPublic,
		boxPrivate: boxPrivate,
		signPublic: signPublic,
		signKey:    signKey,
	}
	p.identities[network] = created
	return created, nil
}

func (p *BoxProvider) LocalOffer(network string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	local, err := p.identityFor(network)
	if err != nil {
		return "", err
	}
	offer := make([]byte, 0, offerSize)
	offer = append(offer, local.boxPublic[:]...)
	offer = append(offer, local.signPublic...)
	offer = append(offer, ed25519.Sign(local.signKey, local.boxPublic[:])...)
	return base64.StdEncoding.EncodeToString(offer), nil
}

// AcceptOffer verifies a peer's offer and derives the shared key.
func (p *BoxProvider) AcceptOffer(network string, peer string, offer string) error {
	raw, err := base64.StdEncoding.DecodeString(offer)
	if err != nil || len(raw) != offerSize {
		return ErrInvalidOffer
	}
	var peerBox [keySize]byte
	copy(peerBox[:], raw[:keySize])
	signPublic := ed25519.PublicKey(raw[keySize : keySize+ed25519.PublicKeySize])
	signature := raw[keySize+ed25519.PublicKeySize:]
	if !ed25519.Verify(signPublic, peerBox[:], signature) {
		return ErrBadSignature
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	local, err := p.identityFor(network)
	if err != nil {
		return err
	}
	shared := new([keySize]byte)
	box.Precompute(shared, &peerBox, local.boxPrivate)
	if p.shared[network] == nil {
		p.shared[network] = make(map[string]*[keySize]byte)
	}
	p.shared[network][peer] = shared
	return nil
}

func (p *BoxProvider) Forget(network string, peer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.shared[network], peer)
}

func (p *BoxProvider) Established(network string, peer string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.shared[network][peer]
	return ok
}

func (p *BoxProvider) sharedKey(network string, peer string) (*[keySize]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	shared, ok := p.shared[network][peer]
	if !ok {
		return nil, ErrUnknownPeer
	}
	return shared, nil
}

// Encrypt seals plaintext under a fresh random nonce, which prefixes the
// base64 ciphertext.
func (p *BoxProvider) Encrypt(network string, peer string, plaintext string) (string, error) {
	shared, err := p.sharedKey(network, peer)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(p.random, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := box.SealAfterPrecomputation(nonce[:], []byte(plaintext), &nonce, shared)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (p *BoxProvider) Decrypt(network string, peer string, ciphertext string) (string, error) {
	shared, err := p.sharedKey(network, peer)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize+box.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := box.OpenAfterPrecomputation(nil, raw[nonceSize:], &nonce, shared)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
