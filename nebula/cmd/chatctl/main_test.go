package main

import (
	"encoding/json"
	"testing"

	"nebula/nebula/utils/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketURL(t *testing.T) {
	got, err := socketURL("http://localhost:8000")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/socket/", got)

	got, err = socketURL("https://chat.example.com/base/")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/base/socket/", got)
}

func TestEnvelope(t *testing.T) {
	chatID := uuid.New()
	env, err := envelope("ai-message", types.AIMessageRequest{ChatID: chatID, Content: "hi", TempID: "t"})
	require.NoError(t, err)
	assert.Equal(t, "ai-message", env.Event)

	var req types.AIMessageRequest
	require.NoError(t, json.Unmarshal(env.Data, &req))
	assert.Equal(t, chatID, req.ChatID)
	assert.Equal(t, "hi", req.Content)
}
