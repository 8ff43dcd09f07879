package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hakkacheyassin/ft-trans/services"
)

type countingSink struct {
	calls int
}

func (s *countingSink) NotifyRoomsChanged() { s.calls++ }

func TestMultiSinkFansOut(t *testing.T) {
	first := &countingSink{}
	second := &countingSink{}
	sink := MultiSink{first, second, NopSink{}}

	sink.NotifyRoomsChanged()
	sink.NotifyRoomsChanged()

	assert.Equal(t, 2, first.calls)
	assert.Equal(t, 2, second.calls)
}

func TestEmptyMultiSink(t *testing.T) {
	var sink services.EventSink = MultiSink{}
	assert.NotPanics(t, sink.NotifyRoomsChanged)
}
