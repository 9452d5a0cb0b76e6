package compositor

import (
	"strings"

	"github.com/keyloom/keyloom/internal/reserved"
)

// Projection is a DynamoDB projection expression plus the attribute-name
// aliases it needs. Names is nil when no field collides with a reserved word.
type Projection struct {
	Expression string
	Names      map[string]string
}

// buildProjection assembles a projection over the given fields, aliasing any
// field whose name is a DynamoDB reserved word. Duplicate fields are dropped.
func buildProjection(fields []string) Projection {
	var parts []string
	var names map[string]string
	seen := make(map[string]struct{}, len(fields))

	for _, field := range fields {
		if _, dup := seen[field]; dup || field == "" {
			continue
		}
		seen[field] = struct{}{}

		if !reserved.IsReserved(field) {
			parts = append(parts, field)
			continue
		}
		if names == nil {
			names = make(map[string]string)
		}
		alias := "#"
		for n := 1; ; n++ {
			if n > len(field) {
				alias = "#" + field
				break
			}
			alias = "#" + field[:n]
			if _, taken := names[alias]; !taken {
				break
			}
		}
		names[alias] = field
		parts = append(parts, alias)
	}

	return Projection{Expression: strings.Join(parts, ","), Names: names}
}

// mergeExprNames merges expression attribute name maps, later maps winning on
// collisions. Returns nil when every input is empty.
func mergeExprNames(maps ...map[string]string) map[string]string {
	var out map[string]string
	for _, m := range maps {
		for k, v := range m {
			if out == nil {
				out = make(map[string]string)
			}
			out[k] = v
		}
	}
	return out
}
