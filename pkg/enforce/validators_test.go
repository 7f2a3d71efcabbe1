package enforce

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpacl/httpacl/pkg/acl"
	"github.com/httpacl/httpacl/pkg/authority"
)

func headerPairs(pairs ...string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for i := 0; i+1 < len(pairs); i += 2 {
			if !yield(pairs[i], pairs[i+1]) {
				return
			}
		}
	}
}

func TestHostPatternValidator(t *testing.T) {
	fn, err := HostPatternValidator("*.internal.example", "api.example")
	require.NoError(t, err)

	cls := fn("https", authority.Domain("db.internal.example"), headerPairs(), nil)
	assert.True(t, cls.IsAllowed())

	cls = fn("https", authority.Domain("api.example"), headerPairs(), nil)
	assert.True(t, cls.IsAllowed())

	// Dot-separated globbing: "*" covers one label only.
	cls = fn("https", authority.Domain("a.b.internal.example"), headerPairs(), nil)
	assert.True(t, cls.IsDenied())

	cls = fn("https", authority.Domain("evil.example"), headerPairs(), nil)
	assert.True(t, cls.IsDenied())

	auth, err := authority.Parse("127.0.0.1")
	require.NoError(t, err)
	cls = fn("https", auth, headerPairs(), nil)
	assert.True(t, cls.IsDenied())

	_, err = HostPatternValidator("[bad")
	assert.Error(t, err)
}

func TestHeaderPatternValidator(t *testing.T) {
	fn, err := HeaderPatternValidator("Authorization", "Bearer *")
	require.NoError(t, err)

	cls := fn("https", authority.Domain("example.com"), headerPairs("Authorization", "Bearer abc123"), nil)
	assert.True(t, cls.IsDenied())

	cls = fn("https", authority.Domain("example.com"), headerPairs("Authorization", "Basic abc123"), nil)
	assert.True(t, cls.IsAllowed())

	cls = fn("https", authority.Domain("example.com"), headerPairs("X-Other", "v"), nil)
	assert.True(t, cls.IsAllowed())
}

func TestChainValidators(t *testing.T) {
	allow := func(string, authority.Authority, iter.Seq2[string, string], []byte) acl.Classification {
		return acl.Classification{Kind: acl.AllowedByDefault}
	}
	deny := func(string, authority.Authority, iter.Seq2[string, string], []byte) acl.Classification {
		return acl.Deny("nope")
	}

	cls := ChainValidators(allow, deny)("https", authority.Domain("example.com"), headerPairs(), nil)
	assert.True(t, cls.IsDenied())

	cls = ChainValidators(allow, allow)("https", authority.Domain("example.com"), headerPairs(), nil)
	assert.True(t, cls.IsAllowed())

	cls = ChainValidators()("https", authority.Domain("example.com"), headerPairs(), nil)
	assert.True(t, cls.IsAllowed())
}
