package ops

import (
	"fmt"
	"time"
)

// sinceDays converts a day window into a search cutoff; zero or
// negative means no cutoff.
func sinceDays(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return time.Now().AddDate(0, 0, -days)
}

func errUnparsable(uid uint32) error {
	return fmt.Errorf("message UID %d could not be parsed", uid)
}
