// Package cypher builds parameterised Cypher statements.
//
// Label, property and relationship type names cannot be bound as parameters,
// so they are interpolated into query text. Every such name passes through
// ValidateIdentifier here and nowhere else; values are always bound.
package cypher

import (
	"fmt"
	"regexp"

	appErrors "typegraph-backend/internal/errors"
)

// identifierPattern admits letters (any script), digits and underscore, not
// starting with a digit, up to 64 runes.
var identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]{0,63}$`)

// IdentifierKind names what an identifier is used as, for error messages.
type IdentifierKind string

const (
	KindLabel        IdentifierKind = "label"
	KindProperty     IdentifierKind = "property"
	KindRelationship IdentifierKind = "relationship type"
)

// ValidateIdentifier rejects anything unsafe to interpolate.
func ValidateIdentifier(kind IdentifierKind, name string) error {
	if identifierPattern.MatchString(name) {
		return nil
	}
	return appErrors.Validation(appErrors.CodeInvalidIdentifier,
		fmt.Sprintf("invalid %s name %q", kind, name)).
		WithResource(name).
		WithDetails("names may contain only letters, digits and underscore and must not start with a digit").
		Build()
}

// quote wraps a validated identifier in backticks.
func quote(name string) string {
	return "`" + name + "`"
}
