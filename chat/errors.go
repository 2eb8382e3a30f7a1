package chat

import "errors"

var ErrBlankChannel error = errors.New("channel cannot be blank")
