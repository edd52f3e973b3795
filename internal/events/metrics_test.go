package events

import (
	"testing"
)

func TestMetrics_Registration(t *testing.T) {
	if EventsPublishedTotal == nil {
		t.Error("EventsPublishedTotal not registered")
	}
	if EventsDroppedTotal == nil {
		t.Error("EventsDroppedTotal not registered")
	}
	if ActiveSubscriptions == nil {
		t.Error("ActiveSubscriptions not registered")
	}
}
