package security

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// formatSeconds rounds d up to whole seconds, never below zero.
func formatSeconds(d time.Duration) string {
	return formatInt(seconds(d))
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
