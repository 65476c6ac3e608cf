package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/certdirectory/crawlcore/pkg/ids"
)

func TestRetentionSweeperPrunesOldReplay(t *testing.T) {
	bus := NewBus(8, 0)
	pub := NewPublisher(bus, ids.NewSessionID(), nil)
	pub.Publish(SessionStartedPayload{})

	bus.pruneOlderThan(time.Now().Add(time.Hour))
	assert.Len(t, bus.replay, 0)
}

func TestRetentionSweeperStartStop(t *testing.T) {
	bus := NewBus(8, 0)
	sweeper := NewRetentionSweeper(bus, 5*time.Millisecond, time.Millisecond, nil)
	sweeper.Start()

	pub := NewPublisher(bus, ids.NewSessionID(), nil)
	pub.Publish(SessionStartedPayload{})

	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()

	bus.replayMu.Lock()
	defer bus.replayMu.Unlock()
	assert.Len(t, bus.replay, 0)
}
