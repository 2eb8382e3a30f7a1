package transport

import "errors"

var (
	ErrBlankHost error = errors.New("host cannot be blank")
	ErrClosed    error = errors.New("transport is closed")
	ErrLineBreak error = errors.New("line cannot contain CR or LF")
)
