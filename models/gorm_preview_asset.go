package models

// PreviewAsset is the preview video recorded next to an acquisition.
type PreviewAsset struct {
	ID            uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AcquisitionID uint   `gorm:"column:acquisition_id;not null;index" json:"acquisition_id"`
	Path          string `gorm:"column:path;not null" json:"path"`
}

// TableName explicitly sets the table name for GORM.
func (PreviewAsset) TableName() string {
	return "preview_asset"
}
