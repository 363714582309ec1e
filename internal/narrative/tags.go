package narrative

import (
	"strconv"
	"strings"

	"drama-server/internal/domain"
)

// ParseTags converts the engine's raw string tags into their typed form.
// "chapter:<int>" sets the chapter, "situation:<name>" sets the situation id,
// any other "key:value" pair becomes metadata. Tags without a colon are
// ignored, as is a chapter tag whose value is not an integer.
func ParseTags(tags []string) domain.SnapshotTags {
	parsed := domain.SnapshotTags{Metadata: make(map[string]string)}

	for _, tag := range tags {
		key, value, found := strings.Cut(tag, ":")
		if !found {
			continue
		}
		switch key {
		case "chapter":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				parsed.Chapter = &n
			}
		case "situation":
			parsed.Situation = value
		default:
			if key != "" && value != "" {
				parsed.Metadata[key] = value
			}
		}
	}

	return parsed
}
