package tensor

// StridedIndex is a restartable iterator over the linear buffer offsets of a
// layout's logical elements, visited in row-major logical order.
type StridedIndex struct {
	shape      Shape
	stride     []int
	offset     int
	multiIndex []int
	nextOffset int
	done       bool
}

// StridedIndexIter returns an iterator over the buffer offsets of every
// logical element of the layout.
func (l *Layout) StridedIndexIter() *StridedIndex {
	it := &StridedIndex{
		shape:  l.shape,
		stride: l.stride,
		offset: l.offset,
	}
	it.Reset()
	return it
}

// Reset restarts the iterator at the first logical element.
func (it *StridedIndex) Reset() {
	it.multiIndex = make([]int, len(it.shape))
	it.nextOffset = it.offset
	it.done = it.shapeIsEmpty()
}

func (it *StridedIndex) shapeIsEmpty() bool {
	for _, d := range it.shape {
		if d == 0 {
			return true
		}
	}
	return false
}

// Next returns the next buffer offset. The second result is false once the
// sequence is exhausted.
func (it *StridedIndex) Next() (int, bool) {
	if it.done {
		return 0, false
	}
	cur := it.nextOffset

	// Advance the multi index, rightmost dimension first.
	carried := true
	for i := len(it.multiIndex) - 1; i >= 0 && carried; i-- {
		it.multiIndex[i]++
		it.nextOffset += it.stride[i]
		if it.multiIndex[i] < it.shape[i] {
			carried = false
		} else {
			it.nextOffset -= it.multiIndex[i] * it.stride[i]
			it.multiIndex[i] = 0
		}
	}
	if carried {
		it.done = true
	}
	return cur, true
}

// StridedBlocks iterates (offset, run length) pairs coalescing maximal
// contiguous runs of a layout, so bulk copies can avoid per-element work.
// For a contiguous layout it yields a single block covering every element.
type StridedBlocks struct {
	blockLen int
	inner    *StridedIndex
	single   bool
	served   bool
	start    int
}

// StridedBlocksIter returns the coalesced contiguous-run iterator for the
// layout.
func (l *Layout) StridedBlocksIter() *StridedBlocks {
	// Find the longest suffix of dimensions laid out contiguously; every
	// block spans exactly that suffix.
	blockLen := 1
	split := len(l.shape)
	for i := len(l.shape) - 1; i >= 0; i-- {
		if l.stride[i] != blockLen || l.shape[i] == 0 {
			break
		}
		blockLen *= l.shape[i]
		split = i
	}
	if l.NumElements() == 0 {
		return &StridedBlocks{single: true, served: true}
	}
	if split == 0 {
		return &StridedBlocks{blockLen: blockLen, single: true, start: l.offset}
	}
	head := Layout{shape: l.shape[:split], stride: l.stride[:split], offset: l.offset}
	return &StridedBlocks{blockLen: blockLen, inner: head.StridedIndexIter()}
}

// Next returns the next (offset, length) block. The third result is false
// once the sequence is exhausted.
func (b *StridedBlocks) Next() (int, int, bool) {
	if b.single {
		if b.served {
			return 0, 0, false
		}
		b.served = true
		return b.start, b.blockLen, true
	}
	off, ok := b.inner.Next()
	if !ok {
		return 0, 0, false
	}
	return off, b.blockLen, true
}
