package acl

import "fmt"

// Dimension names the rule dimension an AddError refers to.
type Dimension string

const (
	DimMethod    Dimension = "method"
	DimHost      Dimension = "host"
	DimPortRange Dimension = "port range"
	DimIPRange   Dimension = "ip range"
	DimHeader    Dimension = "header"
	DimURLPath   Dimension = "url path"
	DimStaticDNS Dimension = "static dns mapping"
)

// AddErrorKind is the closed set of configuration failures.
type AddErrorKind string

const (
	ErrAlreadyAllowed       AddErrorKind = "already_allowed"
	ErrAlreadyDenied        AddErrorKind = "already_denied"
	ErrInvalidEntity        AddErrorKind = "invalid_entity"
	ErrNotUnique            AddErrorKind = "not_unique"
	ErrOverlaps             AddErrorKind = "overlaps"
	ErrBothAllowedAndDenied AddErrorKind = "both_allowed_and_denied"
	ErrOther                AddErrorKind = "error"
)

// AddError is a deterministic configuration error raised while building or
// validating a policy. It is never transient and never retried.
type AddError struct {
	Kind      AddErrorKind
	Dimension Dimension
	Entity    string
	Message   string
}

func (e *AddError) Error() string {
	switch e.Kind {
	case ErrAlreadyAllowed:
		return fmt.Sprintf("%s %q is already allowed", e.Dimension, e.Entity)
	case ErrAlreadyDenied:
		return fmt.Sprintf("%s %q is already denied", e.Dimension, e.Entity)
	case ErrInvalidEntity:
		if e.Message != "" {
			return fmt.Sprintf("invalid %s %q: %s", e.Dimension, e.Entity, e.Message)
		}
		return fmt.Sprintf("invalid %s %q", e.Dimension, e.Entity)
	case ErrNotUnique:
		return fmt.Sprintf("%s %q is not unique", e.Dimension, e.Entity)
	case ErrOverlaps:
		return fmt.Sprintf("%s %q overlaps an existing range", e.Dimension, e.Entity)
	case ErrBothAllowedAndDenied:
		return fmt.Sprintf("%s %q is both allowed and denied", e.Dimension, e.Entity)
	default:
		return e.Message
	}
}

func alreadyAllowed(dim Dimension, entity string) *AddError {
	return &AddError{Kind: ErrAlreadyAllowed, Dimension: dim, Entity: entity}
}

func alreadyDenied(dim Dimension, entity string) *AddError {
	return &AddError{Kind: ErrAlreadyDenied, Dimension: dim, Entity: entity}
}

func invalidEntity(dim Dimension, entity, msg string) *AddError {
	return &AddError{Kind: ErrInvalidEntity, Dimension: dim, Entity: entity, Message: msg}
}

func notUnique(dim Dimension, entity string) *AddError {
	return &AddError{Kind: ErrNotUnique, Dimension: dim, Entity: entity}
}

func overlaps(dim Dimension, entity string) *AddError {
	return &AddError{Kind: ErrOverlaps, Dimension: dim, Entity: entity}
}

func bothAllowedAndDenied(dim Dimension, entity string) *AddError {
	return &AddError{Kind: ErrBothAllowedAndDenied, Dimension: dim, Entity: entity}
}
