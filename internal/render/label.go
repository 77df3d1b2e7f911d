package render

import "strings"

const (
	jobPrefix     = "job-"
	maxLabelRunes = 8
)

// ServiceLabel is the short text drawn for a service id: the id without its
// "job-" prefix, or the last eight characters of an otherwise long id.
func ServiceLabel(id string) string {
	if rest, ok := strings.CutPrefix(id, jobPrefix); ok {
		return rest
	}
	rs := []rune(id)
	if len(rs) > maxLabelRunes {
		return string(rs[len(rs)-maxLabelRunes:])
	}
	return id
}
