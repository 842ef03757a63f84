package connfinder

import "errors"

var ErrInvalidLocalAddress = errors.New("invalid local address")
