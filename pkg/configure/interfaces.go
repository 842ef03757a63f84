package configure

//go:generate mockgen -destination=mock_configure.go -package=configure github.com/carverauto/devscan/pkg/configure Sender

import "context"

// Sender puts an encoded request on the wire. transport.Sender implements it.
type Sender interface {
	Send(ctx context.Context, payload []byte, ttl int) error
}
