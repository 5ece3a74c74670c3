package catalog

// Batch is everything discovered beneath one batch folder, or the merge of
// several of them. Handles stored in child records are only meaningful
// relative to the Batch that holds them.
type Batch struct {
	Folders       []string
	Acquisitions  []Acquisition
	Previews      []PreviewAsset
	Intermediates []IntermediateRender
	Finals        []FinalRender
}

// AddAcquisition appends a and returns its handle.
func (b *Batch) AddAcquisition(a Acquisition) AcquisitionRef {
	b.Acquisitions = append(b.Acquisitions, a)
	return AcquisitionRef(len(b.Acquisitions) - 1)
}

func (b *Batch) AddPreview(p PreviewAsset) {
	b.Previews = append(b.Previews, p)
}

// AddIntermediate appends r and returns its handle.
func (b *Batch) AddIntermediate(r IntermediateRender) IntermediateRef {
	b.Intermediates = append(b.Intermediates, r)
	return IntermediateRef(len(b.Intermediates) - 1)
}

func (b *Batch) AddFinal(r FinalRender) {
	b.Finals = append(b.Finals, r)
}

// Merge appends other to b, rebasing every handle in other by the sizes b had
// before the call. other is left untouched. Merge order does not matter for
// correctness: each child keeps pointing at the parent it was crawled with.
func (b *Batch) Merge(other *Batch) {
	if other == nil {
		return
	}
	acqOffset := AcquisitionRef(len(b.Acquisitions))
	hdOffset := IntermediateRef(len(b.Intermediates))

	b.Folders = append(b.Folders, other.Folders...)
	b.Acquisitions = append(b.Acquisitions, other.Acquisitions...)
	for _, p := range other.Previews {
		p.Acquisition += acqOffset
		b.Previews = append(b.Previews, p)
	}
	for _, r := range other.Intermediates {
		r.Acquisition += acqOffset
		b.Intermediates = append(b.Intermediates, r)
	}
	for _, r := range other.Finals {
		r.Intermediate += hdOffset
		b.Finals = append(b.Finals, r)
	}
}

// AcquisitionTempID returns the temporary id of the acquisition behind ref,
// or "" when ref is out of range.
func (b *Batch) AcquisitionTempID(ref AcquisitionRef) string {
	if ref < 0 || int(ref) >= len(b.Acquisitions) {
		return ""
	}
	return b.Acquisitions[ref].TempID()
}

// IntermediateTempID returns the temporary id of the render behind ref, or ""
// when ref is out of range.
func (b *Batch) IntermediateTempID(ref IntermediateRef) string {
	if ref < 0 || int(ref) >= len(b.Intermediates) {
		return ""
	}
	return b.Intermediates[ref].TempID()
}

// Counts reports how many records of each kind the batch holds.
func (b *Batch) Counts() Counts {
	return Counts{
		Acquisitions:  len(b.Acquisitions),
		Previews:      len(b.Previews),
		Intermediates: len(b.Intermediates),
		Finals:        len(b.Finals),
	}
}
