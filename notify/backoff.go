package notify

import "time"

const (
	BackoffMinInterval = 1 * time.Second
	BackoffMaxInterval = 60 * time.Second
	BackoffMultiplier  = 1.5
)

// backoff grows d by BackoffMultiplier, starting over from BackoffMinInterval
// once it would pass BackoffMaxInterval.
func backoff(d *time.Duration) {
	if *d == 0 {
		*d = BackoffMinInterval
		return
	}
	*d = time.Duration(float64(*d) * BackoffMultiplier)
	if *d < BackoffMaxInterval {
		*d = d.Truncate(time.Millisecond)
	} else {
		*d = BackoffMinInterval
	}
}
