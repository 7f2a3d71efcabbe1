package acl

import "strings"

// Method is an HTTP request method. The nine standard verbs have constants;
// any other string is carried as-is for non-standard verbs.
type Method string

const (
	MethodConnect Method = "CONNECT"
	MethodDelete  Method = "DELETE"
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodPatch   Method = "PATCH"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodTrace   Method = "TRACE"
)

// StandardMethods lists the fixed method enumeration in the order used by
// the default policy.
func StandardMethods() []Method {
	return []Method{
		MethodConnect, MethodDelete, MethodGet, MethodHead, MethodOptions,
		MethodPatch, MethodPost, MethodPut, MethodTrace,
	}
}

// MethodFromString normalizes a verb to upper case. Non-standard verbs are
// carried through unchanged apart from casing.
func MethodFromString(s string) Method {
	return Method(strings.ToUpper(s))
}

// IsStandard reports whether m is one of the nine standard verbs.
func (m Method) IsStandard() bool {
	switch m {
	case MethodConnect, MethodDelete, MethodGet, MethodHead, MethodOptions,
		MethodPatch, MethodPost, MethodPut, MethodTrace:
		return true
	}
	return false
}

func (m Method) String() string { return string(m) }
