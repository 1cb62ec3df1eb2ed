package timeseries

import "sort"

// Kind identifies the stream a merged event came from.
type Kind uint8

const (
	KindRotation Kind = iota
	KindAcceleration
)

func (k Kind) String() string {
	switch k {
	case KindRotation:
		return "rotation"
	case KindAcceleration:
		return "acceleration"
	default:
		return "unknown"
	}
}

// Event is one entry of the merged index.
type Event struct {
	TimeUsec int64
	Kind     Kind
	// Source indexes the rotation or acceleration stream, depending on Kind.
	Source int
	// LastRotation and LastAcceleration index the latest sample of each
	// stream at or before this event, or -1 when there is none yet.
	LastRotation     int
	LastAcceleration int
}

// MergedTimes interleaves the rotation and acceleration streams into a
// single dense index ordered by timestamp. Every sample of both streams
// appears exactly once. On equal timestamps rotations come first, then
// source order is kept.
//
// A MergedTimes is immutable once built and safe for concurrent readers.
type MergedTimes struct {
	events []Event
}

// NewMergedTimes builds the merged index. Both streams must already be
// sorted (see CheckSorted).
func NewMergedTimes(rotations, accelerations []TimedVec3) *MergedTimes {
	events := make([]Event, 0, len(rotations)+len(accelerations))
	i, j := 0, 0
	lastRot, lastAcc := -1, -1
	for i < len(rotations) || j < len(accelerations) {
		takeRotation := j >= len(accelerations) ||
			(i < len(rotations) && rotations[i].TimeUsec <= accelerations[j].TimeUsec)
		if takeRotation {
			lastRot = i
			events = append(events, Event{
				TimeUsec:         rotations[i].TimeUsec,
				Kind:             KindRotation,
				Source:           i,
				LastRotation:     lastRot,
				LastAcceleration: lastAcc,
			})
			i++
			continue
		}
		lastAcc = j
		events = append(events, Event{
			TimeUsec:         accelerations[j].TimeUsec,
			Kind:             KindAcceleration,
			Source:           j,
			LastRotation:     lastRot,
			LastAcceleration: lastAcc,
		})
		j++
	}
	return &MergedTimes{events: events}
}

// Len returns the number of merged events.
func (m *MergedTimes) Len() int { return len(m.events) }

// Event returns the merged event at idx.
func (m *MergedTimes) Event(idx int) Event { return m.events[idx] }

// MergedEventTimeUsec returns the original timestamp of the event at idx.
func (m *MergedTimes) MergedEventTimeUsec(idx int) int64 { return m.events[idx].TimeUsec }

// LowerBound returns the first index whose time is >= timeUsec, or Len().
func (m *MergedTimes) LowerBound(timeUsec int64) int {
	return sort.Search(len(m.events), func(i int) bool { return m.events[i].TimeUsec >= timeUsec })
}

// UpperBound returns the first index whose time is > timeUsec, or Len().
func (m *MergedTimes) UpperBound(timeUsec int64) int {
	return sort.Search(len(m.events), func(i int) bool { return m.events[i].TimeUsec > timeUsec })
}

// Nearest returns the index in [lo, hi) whose time is closest to timeUsec.
// Ties go to the earlier event. It returns -1 for an empty range.
func (m *MergedTimes) Nearest(timeUsec int64, lo, hi int) int {
	if lo < 0 {
		lo = 0
	}
	if hi > len(m.events) {
		hi = len(m.events)
	}
	if lo >= hi {
		return -1
	}
	i := lo + sort.Search(hi-lo, func(k int) bool { return m.events[lo+k].TimeUsec >= timeUsec })
	if i == hi {
		return hi - 1
	}
	if i == lo {
		return lo
	}
	if timeUsec-m.events[i-1].TimeUsec <= m.events[i].TimeUsec-timeUsec {
		return i - 1
	}
	return i
}
