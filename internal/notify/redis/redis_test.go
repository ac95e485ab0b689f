package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/notify"
)

func TestPayloadRoundTrip(t *testing.T) {
	in := notify.Message{Event: notify.MascotsChanged("u1"), Origin: "o1", Timestamp: time.Unix(100, 0).UTC()}
	raw, err := encode(in)
	require.NoError(t, err)

	out, err := decode(string(raw))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeStampsTime(t *testing.T) {
	raw, err := encode(notify.Message{Event: "e"})
	require.NoError(t, err)
	out, err := decode(string(raw))
	require.NoError(t, err)
	assert.False(t, out.Timestamp.IsZero())
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	_, err := decode("nope")
	assert.Error(t, err)
	_, err = decode(`{"origin":"o1"}`)
	assert.Error(t, err)
}

func TestNewRequiresAddress(t *testing.T) {
	_, err := New(context.Background(), "  ", "", nil)
	assert.Error(t, err)
}
