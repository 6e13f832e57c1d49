package epoll

import (
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
	"testing"
)

func TestEdgeTrackerDiff(t *testing.T) {
	var e edgeTracker
	interest := EventIn | EventOut

	assert.Equal(t, EventOut, e.diff(EventOut, interest))
	assert.Equal(t, Mask(0), e.diff(EventOut, interest), "held bit is not an edge")
	assert.Equal(t, EventIn, e.diff(EventIn|EventOut, interest))
	assert.Equal(t, Mask(0), e.diff(EventOut, interest), "clearing is not an edge")
	assert.Equal(t, EventIn, e.diff(EventIn|EventOut, interest), "re-armed bit fires again")
	assert.Equal(t, Mask(0), e.diff(EventIn|EventOut|EventPri, interest), "bits outside interest are ignored")
}

func TestEdgeTrackerSeed(t *testing.T) {
	var e edgeTracker
	e.seed(EventIn)
	assert.Equal(t, Mask(0), e.diff(EventIn, EventIn))
}

func levelGen() *rapid.Generator[Mask] {
	return rapid.Custom(func(t *rapid.T) Mask {
		return Mask(rapid.Uint32().Draw(t, "bits")) & eventBits
	})
}

// Every interest bit is delivered exactly once per 0->1 transition.
func TestEdgeTrackerCountsTransitions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		interest := levelGen().Draw(t, "interest")
		levels := rapid.SliceOf(levelGen()).Draw(t, "levels")

		var e edgeTracker
		var prev Mask
		delivered := make(map[int]int)
		rises := make(map[int]int)
		for _, level := range levels {
			got := e.diff(level, interest)
			if got&^(level&interest) != 0 {
				t.Fatalf("delivered %v outside level %v & interest %v", got, level, interest)
			}
			for b := 0; b < 32; b++ {
				bit := Mask(1) << b
				if got&bit != 0 {
					delivered[b]++
				}
				if interest&bit != 0 && level&bit != 0 && prev&bit == 0 {
					rises[b]++
				}
			}
			prev = level
		}
		for b := 0; b < 32; b++ {
			if delivered[b] != rises[b] {
				t.Fatalf("bit %d: %d deliveries for %d rises", b, delivered[b], rises[b])
			}
		}
	})
}

// A monitor polled after every level change reports a record exactly when
// some watched bit rose, and the record holds the watched part of the
// current level.
func TestMonitorEdgeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		watched := levelGen().Draw(t, "watched") | EventIn
		levels := rapid.SliceOf(levelGen()).Draw(t, "levels")

		ep := newFakeEndpoint(0)
		m := NewMonitor()
		defer m.Close()
		if err := m.Add(ep, watched|EdgeTriggered, 9); err != nil {
			t.Fatal(err)
		}

		effective := watched | alwaysWatched
		var prev Mask
		for _, level := range levels {
			ep.setQuiet(level)
			events, err := m.Wait(4, 0)
			if err != nil {
				t.Fatal(err)
			}
			rose := level & effective &^ prev
			switch {
			case rose == 0 && len(events) != 0:
				t.Fatalf("level %v after %v: unexpected %v", level, prev, events)
			case rose != 0 && len(events) != 1:
				t.Fatalf("level %v after %v: want one record, got %v", level, prev, events)
			case rose != 0 && events[0] != (Event{Events: level & effective, Tag: 9}):
				t.Fatalf("level %v: got %v", level, events[0])
			}
			prev = level
		}
	})
}
