package contacts

// ContactProvider exposes contacts to the batcher. Collider contacts only
// involve the particles of simplex A.
type ContactProvider struct {
	Contacts   []Contact
	Simplices  []int
	Counts     SimplexCounts
	IsCollider bool

	sorted []Contact
}

func (p *ContactProvider) GetConstraintCount() int { return len(p.Contacts) }

func (p *ContactProvider) GetParticleCount(i int) int {
	_, sa := p.Counts.StartAndSize(p.Contacts[i].BodyA)
	if p.IsCollider {
		return sa
	}
	_, sb := p.Counts.StartAndSize(p.Contacts[i].BodyB)
	return sa + sb
}

func (p *ContactProvider) GetParticle(i, slot int) int {
	c := &p.Contacts[i]
	start, size := p.Counts.StartAndSize(c.BodyA)
	if slot >= size {
		slot -= size
		start, _ = p.Counts.StartAndSize(c.BodyB)
	}
	if idx := start + slot; idx < len(p.Simplices) {
		return p.Simplices[idx]
	}
	return -1
}

func (p *ContactProvider) WriteSortedConstraint(i, sortedIndex int) {
	if cap(p.sorted) < len(p.Contacts) {
		p.sorted = make([]Contact, len(p.Contacts))
	}
	p.sorted = p.sorted[:len(p.Contacts)]
	p.sorted[sortedIndex] = p.Contacts[i]
}

// Commit replaces Contacts with the first n sorted contacts.
func (p *ContactProvider) Commit(n int) []Contact {
	if n == 0 {
		p.Contacts = p.Contacts[:0]
		return p.Contacts
	}
	p.Contacts, p.sorted = p.sorted[:n], p.Contacts
	return p.Contacts
}

// Permute reorders Contacts by order, as returned by a counting sort.
func (p *ContactProvider) Permute(order []int) {
	out := make([]Contact, len(order))
	for k, i := range order {
		out[k] = p.Contacts[i]
	}
	p.Contacts = out
}

// FluidProvider exposes fluid pairs to the batcher.
type FluidProvider struct {
	Interactions []FluidInteraction
	sorted       []FluidInteraction
}

func (p *FluidProvider) GetConstraintCount() int  { return len(p.Interactions) }
func (p *FluidProvider) GetParticleCount(int) int { return 2 }

func (p *FluidProvider) GetParticle(i, slot int) int {
	if slot == 0 {
		return p.Interactions[i].ParticleA
	}
	return p.Interactions[i].ParticleB
}

func (p *FluidProvider) WriteSortedConstraint(i, sortedIndex int) {
	if cap(p.sorted) < len(p.Interactions) {
		p.sorted = make([]FluidInteraction, len(p.Interactions))
	}
	p.sorted = p.sorted[:len(p.Interactions)]
	p.sorted[sortedIndex] = p.Interactions[i]
}

func (p *FluidProvider) Commit(n int) []FluidInteraction {
	if n == 0 {
		p.Interactions = p.Interactions[:0]
		return p.Interactions
	}
	p.Interactions, p.sorted = p.sorted[:n], p.Interactions
	return p.Interactions
}

func (p *FluidProvider) Permute(order []int) {
	out := make([]FluidInteraction, len(order))
	for k, i := range order {
		out[k] = p.Interactions[i]
	}
	p.Interactions = out
}
