package terminal

// DefaultMaxLines is used when a buffer is created without a positive capacity.
const DefaultMaxLines = 5000

// Line is a finalised display line.
type Line struct {
	Seq  uint64 `json:"seq"`
	Text string `json:"text"`
}

// lineBuffer is a fixed-capacity ring of finalised lines. It is not
// goroutine-safe; the owning Normalizer serialises access.
type lineBuffer struct {
	entries []Line
	head    int    // next write position
	size    int    // number of stored lines
	seq     uint64 // last assigned sequence number
}

func newLineBuffer(maxLines int) *lineBuffer {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &lineBuffer{entries: make([]Line, maxLines)}
}

func (b *lineBuffer) add(text string) Line {
	b.seq++
	line := Line{Seq: b.seq, Text: text}
	b.entries[b.head] = line
	b.head = (b.head + 1) % len(b.entries)
	if b.size < len(b.entries) {
		b.size++
	}
	return line
}

// since returns the stored lines with a sequence number greater than seq,
// oldest first.
func (b *lineBuffer) since(seq uint64) []Line {
	if b.size == 0 {
		return nil
	}
	start := b.head - b.size
	if start < 0 {
		start += len(b.entries)
	}
	var out []Line
	for i := 0; i < b.size; i++ {
		line := b.entries[(start+i)%len(b.entries)]
		if line.Seq > seq {
			out = append(out, line)
		}
	}
	return out
}

// reset drops all lines but keeps the sequence counter so tails started
// before a clear never see reused numbers.
func (b *lineBuffer) reset() {
	for i := range b.entries {
		b.entries[i] = Line{}
	}
	b.head = 0
	b.size = 0
}
