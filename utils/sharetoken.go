// utils/sharetoken.go
package utils

import (
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const maxShareSlugLen = 48

// NewShareToken builds a readable, unique battle link token such as
// "night-owls-vs-red-fox-3f9a1c2e".
func NewShareToken(challenger, challenged string) string {
	base := slug.Make(challenger + " vs " + challenged)
	if len(base) > maxShareSlugLen {
		base = strings.Trim(base[:maxShareSlugLen], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if base == "" {
		return "battle-" + suffix
	}
	return base + "-" + suffix
}
