package monitor

//go:generate mockgen -destination=mock_monitor.go -package=monitor github.com/carverauto/devscan/pkg/monitor Clock,Ticker,Listener

import (
	"time"

	"github.com/carverauto/devscan/pkg/announce"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Listener receives device lifecycle events. Calls are made from a single
// goroutine in the order the events occurred, so a slow listener delays
// the ones after it but never blocks Update.
type Listener interface {
	NewDevice(path *announce.CommunicationPath)
	UpdatedDevice(oldPath, newPath *announce.CommunicationPath)
	LostDevice(path *announce.CommunicationPath)
}
