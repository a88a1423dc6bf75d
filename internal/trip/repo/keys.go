package repo

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewNaturalKey derives a 32 char hex key from the creation time and the
// addresses. The uuid nonce keeps keys unique when two identical trips are
// requested within the same clock tick.
func NewNaturalKey(now time.Time, pickUp, dropOff string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s:%s",
		now.Format(time.RFC3339Nano), pickUp, dropOff, uuid.NewString())))
	return hex.EncodeToString(sum[:])
}
