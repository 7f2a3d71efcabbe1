package acl

// Kind is the closed set of allow/deny outcomes a dimension check can
// produce.
type Kind string

const (
	// AllowedByRule: the entity matched the allowed ACL.
	AllowedByRule Kind = "allowed_by_rule"
	// AllowedByDefault: no rule matched and the dimension default allows.
	AllowedByDefault Kind = "allowed_by_default"
	// DeniedByRule: the entity matched the denied ACL.
	DeniedByRule Kind = "denied_by_rule"
	// DeniedByDefault: no rule matched and the dimension default denies.
	DeniedByDefault Kind = "denied_by_default"
	// DeniedNotGlobal: the IP is not globally routable.
	DeniedNotGlobal Kind = "denied_not_global"
	// DeniedPrivateRange: the IP is in private-use space and private ranges
	// are not allowed.
	DeniedPrivateRange Kind = "denied_private_range"
	// Denied: denied with a free-text reason, produced by validate hooks.
	Denied Kind = "denied"
)

// Classification carries both the allow/deny verdict of one dimension check
// and the reason, so callers can log why a request was accepted or rejected.
type Classification struct {
	Kind   Kind
	Reason string
}

// Deny returns a Denied classification carrying a free-text reason.
func Deny(reason string) Classification {
	return Classification{Kind: Denied, Reason: reason}
}

// IsAllowed reports whether the classification permits the entity.
func (c Classification) IsAllowed() bool {
	return c.Kind == AllowedByRule || c.Kind == AllowedByDefault
}

// IsDenied reports whether the classification rejects the entity.
func (c Classification) IsDenied() bool { return !c.IsAllowed() }

func (c Classification) String() string {
	switch c.Kind {
	case AllowedByRule:
		return "allowed according to the allowed ACL"
	case AllowedByDefault:
		return "allowed because the default is to allow if no ACL match is found"
	case DeniedByRule:
		return "denied according to the denied ACL"
	case DeniedByDefault:
		return "denied because the default is to deny if no ACL match is found"
	case DeniedNotGlobal:
		return "denied because the IP is not global"
	case DeniedPrivateRange:
		return "denied because the IP is in a private range"
	case Denied:
		return "denied because " + c.Reason
	default:
		return string(c.Kind)
	}
}
