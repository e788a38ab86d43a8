package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderNumber returns ORD-<base36 millis>-<6 random chars>, uppercased.
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return strings.ToUpper("ORD-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix)
}
