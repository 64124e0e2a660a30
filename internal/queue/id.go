package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newID returns an opaque, unique, roughly time-ordered task id: a
// nanosecond timestamp prefix (so ids sort close to creation order even
// though ordering itself is governed by CreatedAt) followed by a random
// suffix to guarantee uniqueness under clock coarsening.
func newID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8])
}
