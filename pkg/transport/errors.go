package transport

import "errors"

var (
	ErrNoMulticastInterfaces = errors.New("no multicast interfaces available")
	ErrNotMulticastGroup     = errors.New("address is not an IPv4 multicast group")
	ErrInvalidTTL            = errors.New("ttl must be between 1 and 255")
	errAlreadyRunning        = errors.New("receiver already running")
)
