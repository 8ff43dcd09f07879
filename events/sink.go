package events

import "github.com/hakkacheyassin/ft-trans/services"

// NopSink discards notifications. Used when no broadcast channel is wired.
type NopSink struct{}

func (NopSink) NotifyRoomsChanged() {}

// MultiSink fans one notification out to several sinks. Best effort all the
// way down: a slow or failing sink never blocks the mutation path.
type MultiSink []services.EventSink

func (s MultiSink) NotifyRoomsChanged() {
	for _, sink := range s {
		sink.NotifyRoomsChanged()
	}
}
