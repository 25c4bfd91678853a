package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenjugit/zeppelin/pkg/errs"
)

func TestParse(t *testing.T) {
	ip, port, err := Parse("10.0.0.1:9221")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", ip)
	assert.Equal(t, 9221, port)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"10.0.0.1",
		"10.0.0.1:",
		"10.0.0.1:port",
		"10.0.0.1:0",
		"10.0.0.1:-1",
		"10.0.0.1:70000",
		":9221",
	} {
		t.Run(in, func(t *testing.T) {
			_, _, err := Parse(in)
			assert.ErrorIs(t, err, errs.ErrMalformedAddr)
		})
	}
}

func TestJoinRoundTrip(t *testing.T) {
	assert.Equal(t, "10.0.0.1:9221", Join("10.0.0.1", 9221))

	ip, port, err := Parse(Join("::1", 9221))
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)
	assert.Equal(t, 9221, port)
}
