package runner

import "github.com/hupe1980/agentrail/core"

// compactor merges runs of consecutive delta events sharing a correlation id
// into the minimum number of events before persistence. Start/end markers
// and every other kind flush the pending delta and pass through untouched,
// so marker ordering is never disturbed.
type compactor struct {
	pending core.Event // TextMessageContent or ToolCallArgs, nil when empty
}

// feed offers one event and returns the events now ready to persist and
// forward, in order.
func (c *compactor) feed(ev core.Event) []core.Event {
	switch e := ev.(type) {
	case core.TextMessageContent:
		if p, ok := c.pending.(core.TextMessageContent); ok && p.MessageID == e.MessageID {
			p.Delta += e.Delta
			c.pending = p
			return nil
		}
		out := c.flush()
		c.pending = e
		return out
	case core.ToolCallArgs:
		if p, ok := c.pending.(core.ToolCallArgs); ok && p.ToolCallID == e.ToolCallID {
			p.Delta += e.Delta
			c.pending = p
			return nil
		}
		out := c.flush()
		c.pending = e
		return out
	default:
		return append(c.flush(), ev)
	}
}

// flush releases any buffered delta.
func (c *compactor) flush() []core.Event {
	if c.pending == nil {
		return nil
	}
	ev := c.pending
	c.pending = nil
	return []core.Event{ev}
}
