package security

import (
	"encoding/json"
	"net/http"
	"time"

	"security-gateway/middleware/security/domain"
)

// Rejection is the JSON body of every refused request.
type Rejection struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error"`
	Code       domain.Code `json:"code"`
	Message    string      `json:"message"`
	RetryAfter *int        `json:"retryAfter,omitempty"`

	status int
}

func newRejection(status int, code domain.Code, message string) Rejection {
	return Rejection{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
		status:  status,
	}
}

func (rj Rejection) withRetryAfter(d time.Duration) Rejection {
	s := seconds(d)
	rj.RetryAfter = &s
	return rj
}

func (rj Rejection) Status() int { return rj.status }

func writeRejection(w http.ResponseWriter, rj Rejection) {
	rj.Success = false
	if rj.RetryAfter != nil {
		w.Header().Set("Retry-After", formatInt(*rj.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(rj.Status())
	_ = json.NewEncoder(w).Encode(rj)
}

func blockedRejection() Rejection {
	return newRejection(http.StatusForbidden, domain.CodeIPBlocked,
		"Access from your IP address has been blocked due to suspicious activity.")
}

func burstRejection() Rejection {
	return newRejection(http.StatusTooManyRequests, domain.CodeDDoSProtection,
		"Request rate too high, slow down.")
}

func tooLargeRejection(limit int64) Rejection {
	return newRejection(http.StatusRequestEntityTooLarge, domain.CodeRequestTooLarge,
		"Request body exceeds the maximum allowed size of "+formatInt(int(limit))+" bytes.")
}

func unavailableRejection() Rejection {
	return newRejection(http.StatusServiceUnavailable, domain.CodeSecurityUnavailable,
		"Request could not be verified, please try again later.")
}
