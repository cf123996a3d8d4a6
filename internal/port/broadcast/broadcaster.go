// Package broadcast defines the port for pushing task changes to live clients.
package broadcast

import "context"

// Broadcaster fans an event out to every connected client. Implementations
// must not block the caller on slow clients; the timer tick calls it while
// other actions wait.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
