package filter

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/getconsole/consolekit/pkg/props"
)

// Args holds filter criteria: property name (or '$'-prefixed JSONPath) to
// expected value. A []any value is an OR over its elements.
type Args map[string]any

// ConversionError is returned when a filter value cannot be coerced to the
// type of the property it is matched against.
type ConversionError struct {
	Property string
	Value    any
	Reason   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("filter value %v for property %q: %s", e.Value, e.Property, e.Reason)
}

// Divide splits filterArgs into a URL query string for the criteria the
// server evaluates (those named in serverNames) and the remaining
// client-side criteria.
//
// Server-side names and values are percent-encoded; a list value becomes
// one query segment per element (server-side OR). The returned query string
// starts with "?" and is empty when no criterion is server-side. Client-side
// criteria are passed through unencoded.
func Divide(serverNames []string, filterArgs Args) (string, Args) {
	if len(filterArgs) == 0 {
		return "", nil
	}

	var segments []string
	client := Args{}

	// Iterate names deterministically so the query string is stable.
	names := make([]string, 0, len(filterArgs))
	for name := range filterArgs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		value := filterArgs[name]
		if !slices.Contains(serverNames, name) {
			client[name] = value
			continue
		}
		if list, ok := value.([]any); ok {
			for _, v := range list {
				segments = append(segments, encodeSegment(name, v))
			}
		} else {
			segments = append(segments, encodeSegment(name, value))
		}
	}

	query := ""
	if len(segments) > 0 {
		query = "?" + strings.Join(segments, "&")
	}
	if len(client) == 0 {
		client = nil
	}
	return query, client
}

// encodeSegment renders one name=value pair with RFC 3986 percent-encoding.
func encodeSegment(name string, value any) string {
	return escape(name) + "=" + escape(props.AsString(value))
}

// escape percent-encodes reserved characters. url.QueryEscape encodes a
// space as '+', which some servers reject in query values, so it is
// rewritten to the RFC 3986 form.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Matches evaluates filterArgs against the resource properties p.
// Nil or empty criteria always match. A missing property never matches.
// Coercion failures surface as *ConversionError rather than a silent
// non-match.
func Matches(p *props.Map, filterArgs Args) (bool, error) {
	if len(filterArgs) == 0 {
		return true, nil
	}
	for name, expected := range filterArgs {
		propValue, ok := lookup(p, name)
		if !ok {
			return false, nil
		}
		matched, err := matchValue(name, propValue, expected)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// lookup resolves a criterion name against the property bag. Names starting
// with '$' are JSONPath expressions over the flattened bag; the first result
// wins.
func lookup(p *props.Map, name string) (any, bool) {
	if !strings.HasPrefix(name, "$") {
		return p.Get(name)
	}
	expr, err := jp.ParseString(name)
	if err != nil {
		return nil, false
	}
	results := expr.Get(p.Flatten())
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// matchValue matches one property value against one expected value.
// A []any expected value is an OR: the first error aborts, otherwise any
// element matching is a match.
func matchValue(name string, propValue, expected any) (bool, error) {
	if list, ok := expected.([]any); ok {
		for _, e := range list {
			matched, err := matchValue(name, propValue, e)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}

	switch pv := propValue.(type) {
	case bool:
		want, err := props.AsBool(expected)
		if err != nil {
			return false, &ConversionError{Property: name, Value: expected, Reason: err.Error()}
		}
		return pv == want, nil
	case string:
		pattern := props.AsString(expected)
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return false, &ConversionError{Property: name, Value: expected, Reason: "invalid match pattern: " + err.Error()}
		}
		return re.MatchString(pv), nil
	}

	if props.IsNumeric(propValue) {
		have, err := props.AsFloat(propValue)
		if err != nil {
			return false, &ConversionError{Property: name, Value: propValue, Reason: err.Error()}
		}
		want, err := props.AsFloat(expected)
		if err != nil {
			return false, &ConversionError{Property: name, Value: expected, Reason: err.Error()}
		}
		return have == want, nil
	}

	// nil, lists, nested maps: structural equality.
	if pm, ok := propValue.(*props.Map); ok {
		if em, ok := expected.(*props.Map); ok {
			return pm.Equal(em), nil
		}
		return false, nil
	}
	return equalLoose(propValue, expected), nil
}

func equalLoose(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalLoose(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return props.AsString(a) == props.AsString(b)
}
