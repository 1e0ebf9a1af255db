// Package ids generates the prefixed record identifiers used by appointments and calls.
package ids

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const suffixLen = 9

// New returns "<prefix>_<unix millis>_<9 random chars>".
func New(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}
