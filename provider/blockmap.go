package provider

// BlockMap resolves a provider's stream-local block index to the block's
// offset inside the response turn's arena. Block start order does not match
// arena append order once different block kinds interleave, so delta events
// must always resolve through the map and never position content themselves.
//
// The map is scoped to one in-flight response; translators create a fresh
// one per streaming cycle and never reuse indices across responses.
type BlockMap struct {
	offsets map[string]int
	length  int
}

// NewBlockMap returns an empty map for a response whose arena starts empty.
func NewBlockMap() *BlockMap {
	return &BlockMap{offsets: make(map[string]int)}
}

// Append reserves the next arena offset for a block that has no stream
// index (the normalized start marker). The caller must emit the matching
// append operation.
func (m *BlockMap) Append() int {
	offset := m.length
	m.length++
	return offset
}

// Open records the mapping streamIndex → current arena length and reserves
// the offset, in that order, so the mapping is established before the block
// is appended. Reopening a known index returns its existing offset.
func (m *BlockMap) Open(streamIndex string) int {
	if offset, ok := m.offsets[streamIndex]; ok {
		return offset
	}
	offset := m.length
	m.offsets[streamIndex] = offset
	m.length++
	return offset
}

// Resolve returns the arena offset recorded for the stream index.
func (m *BlockMap) Resolve(streamIndex string) (int, bool) {
	offset, ok := m.offsets[streamIndex]
	return offset, ok
}
