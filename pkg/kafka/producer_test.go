package kafka

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	event := &ResultEvent{EventType: "result.created", ExperimentID: "HPHT_001", ResultID: 42, Kind: "scalar"}

	msg, err := newMessage("lims-events", event.EventType, event.ExperimentID, event,
		kafka.Header{Key: "result_id", Value: []byte("42")})
	require.NoError(t, err)

	assert.Equal(t, "lims-events", msg.Topic)
	assert.Equal(t, []byte("HPHT_001"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "result.created", string(msg.Headers[0].Value))
	assert.Equal(t, "result_id", msg.Headers[2].Key)

	var decoded ResultEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, int64(42), decoded.ResultID)
	assert.Equal(t, "scalar", decoded.Kind)
}

func TestNewMessage_Unencodable(t *testing.T) {
	_, err := newMessage("t", "x", "HPHT_001", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
