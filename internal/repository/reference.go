package repository

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	ownerNameSeparatorConstant          = "/"
	referenceParseErrorTemplateConstant = "%q: %s"
	requiredValueMessageConstant        = "value required"
	invalidFormatMessageConstant        = "expected owner/name"
	whitespaceMessageConstant           = "whitespace is not allowed"
	fetchKeyFormatTemplateConstant      = "%s:%s"
	fetchKeyWithRefTemplateConstant     = "%s:%s@%s"
)

// Reference identifies a hosted repository by owner and name.
type Reference struct {
	Owner string
	Name  string
}

// ParseError reports a repository identifier that is not in owner/name form.
type ParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError ParseError) Error() string {
	return fmt.Sprintf(referenceParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// Parse converts an "owner/name" string into a Reference.
func Parse(identifier string) (Reference, error) {
	trimmedIdentifier := strings.TrimSpace(identifier)
	if len(trimmedIdentifier) == 0 {
		return Reference{}, ParseError{Input: identifier, Message: requiredValueMessageConstant}
	}

	if strings.IndexFunc(trimmedIdentifier, unicode.IsSpace) != -1 {
		return Reference{}, ParseError{Input: identifier, Message: whitespaceMessageConstant}
	}

	segments := strings.Split(trimmedIdentifier, ownerNameSeparatorConstant)
	if len(segments) != 2 || len(segments[0]) == 0 || len(segments[1]) == 0 {
		return Reference{}, ParseError{Input: identifier, Message: invalidFormatMessageConstant}
	}

	return Reference{Owner: segments[0], Name: segments[1]}, nil
}

// String renders the reference as owner/name, preserving case.
func (reference Reference) String() string {
	return reference.Owner + ownerNameSeparatorConstant + reference.Name
}

// Key returns the case-insensitive identity of the reference.
func (reference Reference) Key() string {
	return strings.ToLower(reference.String())
}

// Equal reports whether two references name the same repository.
func (reference Reference) Equal(other Reference) bool {
	return strings.EqualFold(reference.Owner, other.Owner) && strings.EqualFold(reference.Name, other.Name)
}

// Less orders references by their case-insensitive key, falling back to the original spelling.
func (reference Reference) Less(other Reference) bool {
	referenceKey := reference.Key()
	otherKey := other.Key()
	if referenceKey != otherKey {
		return referenceKey < otherKey
	}
	return reference.String() < other.String()
}

// FetchKey addresses a single file inside a repository.
type FetchKey struct {
	Repository Reference
	FilePath   string
	// Ref selects a branch, tag, or commit; empty means the default branch.
	Ref string
}

// NormalizedFilePath strips surrounding whitespace and leading slashes.
func (key FetchKey) NormalizedFilePath() string {
	return strings.TrimLeft(strings.TrimSpace(key.FilePath), ownerNameSeparatorConstant)
}

// String renders the key for logs.
func (key FetchKey) String() string {
	trimmedRef := strings.TrimSpace(key.Ref)
	if len(trimmedRef) == 0 {
		return fmt.Sprintf(fetchKeyFormatTemplateConstant, key.Repository, key.NormalizedFilePath())
	}
	return fmt.Sprintf(fetchKeyWithRefTemplateConstant, key.Repository, key.NormalizedFilePath(), trimmedRef)
}
