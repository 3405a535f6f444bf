package orders

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const orderNumberPrefix = "ORD"

// NewOrderNumber builds a human-readable order number: prefix, millisecond
// timestamp, 8 uppercase hex characters. Uniqueness is probabilistic; the
// orders table carries a unique constraint and creation retries on
// collision.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return orderNumberPrefix + strconv.FormatInt(now.UnixMilli(), 10) + suffix
}
