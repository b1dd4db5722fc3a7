package utils

import (
	"fmt"
	"time"
)

// AlertDedupKey identifies one worker's alert quota for one UTC calendar day.
func AlertDedupKey(workerID string, day time.Time) string {
	return fmt.Sprintf("alert:%s:%s", workerID, day.UTC().Format("2006-01-02"))
}
