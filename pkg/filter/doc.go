// Package filter implements the filtering engine shared by the live client
// and the faked backend.
//
// Filter criteria arrive as a flat map from property name to expected value.
// Divide splits the criteria into the part a server can evaluate as query
// parameters and the part that must be evaluated client-side; Matches
// evaluates the client-side part against a materialized property bag with
// type-directed coercion (booleans, numbers, full-match regular expressions
// for strings). Keys starting with '$' are JSONPath expressions evaluated
// against the whole bag.
package filter
