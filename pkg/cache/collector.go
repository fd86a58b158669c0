package cache

// Collector accumulates the bubbleable metadata of one render. It only ever
// merges, so the result is monotonic in the fragments seen. A Collector is
// owned by a single render and is not safe for concurrent use.
type Collector struct {
	result  Bubbleable
	bubbles int
}

// NewCollector returns a collector seeded with empty metadata.
func NewCollector() *Collector {
	return &Collector{result: NewBubbleable()}
}

// Bubble merges b into the collected metadata.
func (c *Collector) Bubble(b Bubbleable) {
	if c == nil {
		return
	}
	c.bubbles++
	c.result = c.result.Merge(b)
}

// BubbleMetadata merges cache metadata without attachments.
func (c *Collector) BubbleMetadata(m Metadata) {
	c.Bubble(Bubbleable{Metadata: m})
}

// Result returns a copy of the metadata collected so far.
func (c *Collector) Result() Bubbleable {
	if c == nil {
		return NewBubbleable()
	}
	return c.result.Merge(NewBubbleable())
}

// Bubbles reports how many times Bubble was called.
func (c *Collector) Bubbles() int {
	if c == nil {
		return 0
	}
	return c.bubbles
}
