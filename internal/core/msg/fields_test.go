package msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFields_RoundTrip(t *testing.T) {
	var b []byte
	b = AppendUint(b, 1, 42)
	b = AppendString(b, 2, "SB_CMD_PIPE")
	b = AppendUint(b, 3, 1<<40)

	got, err := ParseUints(b)
	require.NoError(t, err)
	assert.Equal(t, map[protowire.Number]uint64{1: 42, 3: 1 << 40}, got)
}

func TestParseUints_Truncated(t *testing.T) {
	b := AppendUint(nil, 1, 300)
	_, err := ParseUints(b[:len(b)-1])
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	b := Build(0x0803, 0, []byte{1, 2, 3})
	require.NoError(t, Validate(b))
	assert.Equal(t, []byte{1, 2, 3}, Payload(b))
}

func TestParseString(t *testing.T) {
	var b []byte
	b = AppendUint(b, 1, 7)
	b = AppendString(b, 2, "127.0.0.1:1235")

	s, ok, err := ParseString(b, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1:1235", s)

	_, ok, err = ParseString(b, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseString(b[:len(b)-2], 2)
	assert.Error(t, err)
}
