package apply

import (
	"fmt"
	"strings"
	"time"
)

// Marker is the opaque metadata embedded in an applied document. Its
// presence is the sole signal that a draft has already been merged in.
type Marker struct {
	RunID     string
	DraftHash string
	AppliedAt time.Time
}

// Encode renders the marker payload embedded by the host.
func (m Marker) Encode() string {
	return fmt.Sprintf("run=%s draft=%s at=%s", m.RunID, m.DraftHash, m.AppliedAt.UTC().Format(time.RFC3339))
}

// ParseMarker decodes a marker payload. Unknown fields are ignored so older
// outputs stay readable.
func ParseMarker(payload string) Marker {
	var m Marker
	for _, field := range strings.Fields(payload) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		switch key {
		case "run":
			m.RunID = value
		case "draft":
			m.DraftHash = value
		case "at":
			if at, err := time.Parse(time.RFC3339, value); err == nil {
				m.AppliedAt = at
			}
		}
	}
	return m
}
