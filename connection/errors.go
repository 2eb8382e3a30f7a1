package connection

import "errors"

var (
	ErrNotConnected         error = errors.New("connection is not connected")
	ErrNoDialer             error = errors.New("manager has no dialer")
	ErrMissingNetworkConfig error = errors.New("network config cannot be nil")
	ErrBlankConnectionID    error = errors.New("connection id cannot be blank")
	ErrBlankNick            error = errors.New("nick cannot be blank")
)
