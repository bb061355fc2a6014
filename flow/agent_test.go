package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRunCompletesCreatedJob(t *testing.T) {
	syncDir := t.TempDir()

	requester := newSyncTestSession(t, t.TempDir(), syncDir)
	raw := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi", "_dump": true},
		},
	}
	requesterFlow, err := requester.MakeFlow("agent.json", raw)
	require.NoError(t, err)
	reqNode, err := requesterFlow.FindNode("main.greet")
	require.NoError(t, err)

	require.NoError(t, reqNode.CreateJob("worker"))

	worker := newSyncTestSession(t, t.TempDir(), syncDir)
	workerFlow, err := worker.MakeFlow("agent.json", raw)
	require.NoError(t, err)

	agent := NewAgent(worker, "worker")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	go func() {
		_ = agent.Run(ctx, 20*time.Millisecond, func(slug string) (*Node, error) {
			return workerFlow.FindNodeBySlug(slug)
		})
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	result, err := reqNode.WaitForJob(waitCtx, "worker", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}
