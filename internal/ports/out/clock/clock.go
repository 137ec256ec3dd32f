package clock

import "time"

// Clock supplies "now" to services, session tokens and the idempotency layer.
// Dates such as "today" for the future-date check derive from it.
type Clock interface {
	Now() time.Time
}
