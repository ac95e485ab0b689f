package amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/notify"
)

func TestChangeMessageWireFormat(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := NewChangeMessage(notify.Message{Event: "category_mascots.changed:u1", Origin: "o1", Timestamp: ts})

	body, err := msg.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"category_mascots.changed:u1","origin":"o1","timestamp":"2024-03-01T10:00:00Z"}`, string(body))

	back, err := ChangeMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, msg.Notify(), back.Notify())
}

func TestChangeMessageDefaultsTimestamp(t *testing.T) {
	msg := NewChangeMessage(notify.Message{Event: "e"})
	assert.False(t, msg.Timestamp.IsZero())
}

func TestChangeMessageFromJSONRejects(t *testing.T) {
	for name, body := range map[string]string{
		"not json":    `{`,
		"no event":    `{"origin":"o1"}`,
		"empty event": `{"event":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ChangeMessageFromJSON([]byte(body))
			assert.Error(t, err)
		})
	}
}
