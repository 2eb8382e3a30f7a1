package e2ee

import "errors"

var (
	ErrUnknownPeer      error = errors.New("no key established for peer")
	ErrInvalidOffer     error = errors.New("key offer is invalid")
	ErrBadSignature     error = errors.New("key offer signature does not verify")
	ErrDecrypt          error = errors.New("ciphertext could not be decrypted")
	ErrNoPendingRequest error = errors.New("no pending key exchange request from peer")
	ErrNoSender         error = errors.New("overlay has no sender")
)
