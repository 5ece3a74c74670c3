package models

import "time"

// IntermediateRender is a first-stage (HD) render folder.
// It corresponds to the 'intermediate_render' table.
type IntermediateRender struct {
	ID            uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AcquisitionID uint       `gorm:"column:acquisition_id;not null;index" json:"acquisition_id"`
	Path          string     `gorm:"column:path;not null" json:"path"`
	SequenceNo    *int       `gorm:"column:sequence_no" json:"sequence_no,omitempty"`         // Nullable
	ParamsJSON    *string    `gorm:"column:params_json" json:"params_json,omitempty"`         // Nullable, compact JSON
	RawOutputPath *string    `gorm:"column:raw_output_path" json:"raw_output_path,omitempty"` // Nullable
	Version       *string    `gorm:"column:version" json:"version,omitempty"`                 // Nullable, from version.txt
	UpdatedAt     *time.Time `gorm:"column:updated_at" json:"updated_at,omitempty"`           // Nullable

	// Relationships
	Finals []FinalRender `gorm:"foreignKey:IntermediateID" json:"finals,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (IntermediateRender) TableName() string {
	return "intermediate_render"
}
