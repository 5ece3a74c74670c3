// Package catalog holds the records exchanged between the crawler and the
// loader. Parents are referenced through index handles into the owning Batch
// because no durable database id exists until the loader runs.
package catalog

import "time"

// AcquisitionRef indexes Batch.Acquisitions.
type AcquisitionRef int

// IntermediateRef indexes Batch.Intermediates.
type IntermediateRef int

// Acquisition is one raw measurement file.
type Acquisition struct {
	Path      string
	Tag       *string
	CreatedAt time.Time
}

// PreviewAsset is a preview video colocated with its acquisition.
type PreviewAsset struct {
	Acquisition AcquisitionRef
	Path        string
}

// IntermediateRender is a first-stage ("HD") render folder.
type IntermediateRender struct {
	Acquisition   AcquisitionRef
	Path          string
	SequenceNo    *int
	ParamsJSON    *string
	Version       *string
	RawOutputPath *string
	UpdatedAt     *time.Time
}

// FinalRender is a second-stage ("EF") render folder.
type FinalRender struct {
	Intermediate    IntermediateRef
	Path            string
	SequenceNo      *int
	InputParamsJSON *string
	Version         *string
	ReportPath      *string
	OutputPath      *string
	UpdatedAt       *time.Time
}

// TempID is the process-local surrogate key of a record: its absolute path.
// It only ever appears in log lines.
func (a Acquisition) TempID() string        { return a.Path }
func (p PreviewAsset) TempID() string       { return p.Path }
func (r IntermediateRender) TempID() string { return r.Path }
func (r FinalRender) TempID() string        { return r.Path }
