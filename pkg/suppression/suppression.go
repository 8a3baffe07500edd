// Package suppression prevents duplicate workflow starts when the same
// trigger event is delivered more than once within a short window.
package suppression

import (
	"context"
	"time"
)

// DefaultWindow is how long a claim on a trigger key is held.
const DefaultWindow = 60 * time.Second

// Store claims trigger keys. Claim returns true when the caller is the first
// to claim the key within the window and should proceed; false means a
// duplicate delivery that must be dropped.
type Store interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	Close() error
}
