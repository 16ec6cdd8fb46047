package mdstream

// DocumentState is a UI-friendly container for the stable, renderable
// state of a stream: the committed blocks (append-only) and an optional
// pending block that can change every tick.
//
// It intentionally does not own the Stream, so it can live on the render
// side of a pipeline and be fed updates from anywhere. Applying updates
// through DocumentState guarantees reset semantics are honored.
type DocumentState struct {
	committed []Block
	pending   *Block
}

func NewDocumentState() *DocumentState {
	return &DocumentState{}
}

// Committed returns the committed blocks in commit order. The returned
// slice is owned by the DocumentState and must not be mutated.
func (d *DocumentState) Committed() []Block {
	return d.committed
}

// Pending returns the current pending block, or nil.
func (d *DocumentState) Pending() *Block {
	return d.pending
}

// Blocks returns committed blocks followed by the pending block, if any.
func (d *DocumentState) Blocks() []Block {
	out := make([]Block, 0, len(d.committed)+1)
	out = append(out, d.committed...)
	if d.pending != nil {
		out = append(out, *d.pending)
	}
	return out
}

// Clear drops all state.
func (d *DocumentState) Clear() {
	d.committed = nil
	d.pending = nil
}

// Apply absorbs an update: on reset it drops prior state, then appends
// newly committed blocks and replaces the pending snapshot. The
// remaining signals (reset, invalidated) are returned for the caller.
func (d *DocumentState) Apply(u Update) AppliedUpdate {
	if u.Reset {
		d.committed = d.committed[:0]
		d.pending = nil
	}
	d.committed = append(d.committed, u.Committed...)
	if u.Pending != nil {
		p := *u.Pending
		d.pending = &p
	} else {
		d.pending = nil
	}
	return AppliedUpdate{Reset: u.Reset, Invalidated: u.Invalidated}
}

// FindCommitted returns the committed block with the given id, or nil.
func (d *DocumentState) FindCommitted(id BlockID) *Block {
	for i := range d.committed {
		if d.committed[i].ID == id {
			return &d.committed[i]
		}
	}
	return nil
}
