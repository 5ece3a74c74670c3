package models

import "time"

// Acquisition represents a raw measurement file in the database using GORM.
// It corresponds to the 'acquisition' table.
type Acquisition struct {
	ID        uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Path      string     `gorm:"column:path;not null" json:"path"`
	Tag       *string    `gorm:"column:tag" json:"tag,omitempty"`               // Nullable, second "_" segment of the file name
	CreatedAt *time.Time `gorm:"column:created_at" json:"created_at,omitempty"` // Nullable, acquisition date

	// Relationships
	Previews      []PreviewAsset       `gorm:"foreignKey:AcquisitionID" json:"previews,omitempty"`
	Intermediates []IntermediateRender `gorm:"foreignKey:AcquisitionID" json:"intermediates,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Acquisition) TableName() string {
	return "acquisition"
}
