package enforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDNSResolverDefaults(t *testing.T) {
	d := NewDNSResolver("")
	assert.Equal(t, "8.8.8.8:53", d.upstream)
	require.NotNil(t, d.client)
	assert.Equal(t, "udp", d.client.Net)

	d = NewDNSResolver("1.1.1.1:53")
	assert.Equal(t, "1.1.1.1:53", d.upstream)
}
