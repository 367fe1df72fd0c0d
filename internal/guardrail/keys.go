package guardrail

import (
	"fmt"
	"strconv"
	"time"
)

func quotaKey(namespace, userID string, day time.Time) string {
	return fmt.Sprintf("%s:quota:%s:%s", namespace, userID, day.UTC().Format("2006-01-02"))
}

func rateKey(namespace, userID, clientIP string) string {
	return fmt.Sprintf("%s:rate:%s:%s", namespace, userID, clientIP)
}

// nextUTCMidnight returns the start of the UTC day after t.
func nextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// parseCount treats missing, garbage and negative values as zero.
func parseCount(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
