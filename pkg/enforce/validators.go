package enforce

import (
	"fmt"
	"iter"

	"github.com/gobwas/glob"

	"github.com/httpacl/httpacl/pkg/acl"
	"github.com/httpacl/httpacl/pkg/authority"
)

// HostPatternValidator builds a validate hook that allows only domain hosts
// matching one of the glob patterns (for example "*.internal.example").
// Patterns are segmented on dots, so "*" matches a single label. IP-literal
// hosts are denied; IP policy belongs to the IP dimension.
func HostPatternValidator(patterns ...string) (acl.ValidateFunc, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pat := range patterns {
		g, err := glob.Compile(pat, '.')
		if err != nil {
			return nil, fmt.Errorf("compile host pattern %q: %w", pat, err)
		}
		globs = append(globs, g)
	}
	return func(_ string, auth authority.Authority, _ iter.Seq2[string, string], _ []byte) acl.Classification {
		if auth.Host.IsIP() {
			return acl.Deny("the host is an IP literal")
		}
		for _, g := range globs {
			if g.Match(auth.Host.Domain) {
				return acl.Classification{Kind: acl.AllowedByRule}
			}
		}
		return acl.Deny("the host matches no allowed pattern")
	}, nil
}

// HeaderPatternValidator builds a validate hook that denies requests
// carrying a header whose value matches the glob pattern. Useful for
// content-aware rules the per-header exact matching cannot express.
func HeaderPatternValidator(name, pattern string) (acl.ValidateFunc, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile header pattern %q: %w", pattern, err)
	}
	return func(_ string, _ authority.Authority, headers iter.Seq2[string, string], _ []byte) acl.Classification {
		for hname, hvalue := range headers {
			if hname == name && g.Match(hvalue) {
				return acl.Deny(fmt.Sprintf("header %s has a forbidden value", name))
			}
		}
		return acl.Classification{Kind: acl.AllowedByDefault}
	}, nil
}

// ChainValidators combines hooks; the first denial wins and an empty chain
// allows by default.
func ChainValidators(fns ...acl.ValidateFunc) acl.ValidateFunc {
	return func(scheme string, auth authority.Authority, headers iter.Seq2[string, string], body []byte) acl.Classification {
		for _, fn := range fns {
			if cls := fn(scheme, auth, headers, body); cls.IsDenied() {
				return cls
			}
		}
		return acl.Classification{Kind: acl.AllowedByDefault}
	}
}
