package application

import (
	"time"

	"security-gateway/middleware/security/domain"
)

func now(c domain.Clock) time.Time {
	if c == nil {
		return time.Now()
	}
	return c.Now()
}
