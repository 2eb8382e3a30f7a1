package store

import "errors"

var (
	ErrBlankStoreLocation error = errors.New("storeLocation cannot be blank")
	ErrBlankNetworkId     error = errors.New("networkId cannot be blank")
	ErrBlankProfileId     error = errors.New("profileId cannot be blank")
	ErrTopicNotFound      error = errors.New("topic not found")
)
