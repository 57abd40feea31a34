package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBeforePublish(t *testing.T) {
	assert.Equal(t, RunStatus{}, Get())
}

func TestPublishReplacesStatus(t *testing.T) {
	Publish(RunStatus{Running: true, CurrentChannel: "One", TotalSegments: 5})
	got := Get()
	assert.True(t, got.Running)
	assert.Equal(t, "One", got.CurrentChannel)
	assert.Equal(t, 5, got.TotalSegments)

	Publish(RunStatus{Running: false})
	assert.False(t, Get().Running)
}
