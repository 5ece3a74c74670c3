package models

import "time"

// FinalRender is a second-stage (EF) render folder.
// It corresponds to the 'final_render' table.
type FinalRender struct {
	ID              uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	IntermediateID  uint       `gorm:"column:intermediate_id;not null;index" json:"intermediate_id"`
	SequenceNo      *int       `gorm:"column:sequence_no" json:"sequence_no,omitempty"` // Nullable
	Path            string     `gorm:"column:path;not null" json:"path"`
	InputParamsJSON *string    `gorm:"column:input_params_json" json:"input_params_json,omitempty"` // Nullable, only when requested at scan time
	Version         *string    `gorm:"column:version" json:"version,omitempty"`                     // Nullable, parsed from log/
	ReportPath      *string    `gorm:"column:report_path" json:"report_path,omitempty"`             // Nullable
	OutputPath      *string    `gorm:"column:output_path" json:"output_path,omitempty"`             // Nullable
	UpdatedAt       *time.Time `gorm:"column:updated_at" json:"updated_at,omitempty"`               // Nullable
}

// TableName explicitly sets the table name for GORM.
func (FinalRender) TableName() string {
	return "final_render"
}
