package batch

import (
	"time"

	"github.com/relaymate/chatbatch/internal/chat"
)

// DefaultGroupWindow is the maximum gap between consecutive inbound messages
// that still places them in the same burst.
const DefaultGroupWindow = 5 * time.Second

// Partitions is the result of windowing one conversation's backlog. Runs holds
// the bursts (each at least two messages); Isolated holds the messages that
// chained with nothing.
type Partitions struct {
	Runs     [][]chat.Message
	Isolated []chat.Message
}

// Grouped flattens every run into a single slice, preserving order. The sweep
// synthesizes one digest for this whole partition.
func (p Partitions) Grouped() []chat.Message {
	var out []chat.Message
	for _, run := range p.Runs {
		out = append(out, run...)
	}
	return out
}

// Empty reports whether windowing produced nothing to synthesize.
func (p Partitions) Empty() bool {
	return len(p.Runs) == 0 && len(p.Isolated) == 0
}

// Partition splits messages into maximal runs where each consecutive gap is at
// most window (inclusive), in a single linear pass. Runs of length one are
// classified as isolated. Grouping is transitive: a run's total span may exceed
// the window as long as every consecutive gap is within it.
//
// Precondition: messages must be ordered ascending by EventTimestamp. Behavior
// on unsorted input is undefined.
func Partition(messages []chat.Message, window time.Duration) Partitions {
	var p Partitions
	if len(messages) == 0 {
		return p
	}
	if window <= 0 {
		window = DefaultGroupWindow
	}

	run := []chat.Message{messages[0]}
	for _, m := range messages[1:] {
		gap := m.EventTimestamp.Sub(run[len(run)-1].EventTimestamp)
		if gap <= window {
			run = append(run, m)
			continue
		}
		p.close(run)
		run = []chat.Message{m}
	}
	p.close(run)
	return p
}

func (p *Partitions) close(run []chat.Message) {
	if len(run) > 1 {
		p.Runs = append(p.Runs, run)
		return
	}
	p.Isolated = append(p.Isolated, run...)
}
