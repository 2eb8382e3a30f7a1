package batch

import "errors"

var (
	ErrNoSender error = errors.New("coordinator has no sender")
)
