package resource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getconsole/consolekit/pkg/filter"
)

// NotFoundError is synthesized client-side when criteria match no resource.
// No network call failed; the criteria and parent identity are carried for
// diagnostics.
type NotFoundError struct {
	Kind     string
	Criteria filter.Args
	Parent   string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("no %s found matching %s", e.Kind, formatCriteria(e.Criteria))
	if e.Parent != "" {
		msg += " under " + e.Parent
	}
	return msg
}

// NoUniqueMatchError is synthesized client-side when criteria match more
// than one resource.
type NoUniqueMatchError struct {
	Kind     string
	Criteria filter.Args
	Parent   string
	URIs     []string
}

func (e *NoUniqueMatchError) Error() string {
	msg := fmt.Sprintf("%d %ss match %s", len(e.URIs), e.Kind, formatCriteria(e.Criteria))
	if e.Parent != "" {
		msg += " under " + e.Parent
	}
	return msg + ": " + strings.Join(e.URIs, ", ")
}

func formatCriteria(args filter.Args) string {
	if len(args) == 0 {
		return "(no criteria)"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return strings.Join(parts, ", ")
}
