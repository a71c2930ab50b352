package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher(t *testing.T) {
	p := NewPublisher(nil, "")
	assert.Equal(t, "coordenv", p.Prefix())
	assert.Equal(t, byte(1), p.qos)
	assert.False(t, p.retain)

	assert.Equal(t, "lab", NewPublisher(nil, "lab").Prefix())
}

func TestPublisher_NotConnected(t *testing.T) {
	assert.Error(t, NewPublisher(nil, "").PublishStatus(BatchStatus{}))
	assert.Error(t, NewPublisher(newFakeClient(false), "").PublishResult(SiteResult{ID: "a"}))
}

func TestPublisher_PublishResult(t *testing.T) {
	client := newFakeClient(true)
	p := NewPublisher(client, "lab")

	require.NoError(t, p.PublishResult(SiteResult{ID: "site-1", DurationMs: 2}))

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "lab/results/site-1", msgs[0].Topic)
	assert.Equal(t, byte(1), msgs[0].QoS)

	var got SiteResult
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, "site-1", got.ID)
}

func TestPublisher_PublishStatusStampsTime(t *testing.T) {
	client := newFakeClient(true)
	p := NewPublisher(client, "lab")

	require.NoError(t, p.PublishStatus(BatchStatus{Sites: 3, Matched: 2, Skipped: 1}))

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "lab/status", msgs[0].Topic)

	var got BatchStatus
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, 3, got.Sites)
	assert.NotZero(t, got.Timestamp)
}

func TestPublisher_PublishError(t *testing.T) {
	client := newFakeClient(true)
	client.publishErr = errors.New("broker full")

	err := NewPublisher(client, "lab").PublishResult(SiteResult{ID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lab/results/a")
}

func TestPublisher_SetQoSAndRetain(t *testing.T) {
	client := newFakeClient(true)
	p := NewPublisher(client, "lab")
	p.SetQoS(2)
	p.SetQoS(7) // ignored
	p.SetRetain(true)

	require.NoError(t, p.PublishStatus(BatchStatus{}))
	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, byte(2), msgs[0].QoS)
	assert.True(t, msgs[0].Retain)
}
