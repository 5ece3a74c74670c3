package repository

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/models"
)

// CatalogFilter narrows ListCatalog. Zero values disable a criterion.
type CatalogFilter struct {
	Tag string
	// Version matches either render generation.
	Version      string
	PathContains string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	// Unprocessed keeps only acquisitions without any HD render.
	Unprocessed bool
	// Sort is one of the database.Sort* orders; empty means path order.
	Sort   string
	Limit  int
	Offset int
}

// CatalogRow is one line of the acquisition ⟕ HD ⟕ EF join.
type CatalogRow struct {
	AcquisitionID         uint       `json:"acquisition_id"`
	AcquisitionPath       string     `json:"acquisition_path"`
	Tag                   *string    `json:"tag,omitempty"`
	CreatedAt             *time.Time `json:"created_at,omitempty"`
	IntermediateID        *uint      `json:"intermediate_id,omitempty"`
	IntermediatePath      *string    `json:"intermediate_path,omitempty"`
	IntermediateSequence  *int       `json:"intermediate_sequence,omitempty"`
	IntermediateVersion   *string    `json:"intermediate_version,omitempty"`
	IntermediateUpdatedAt *time.Time `json:"intermediate_updated_at,omitempty"`
	FinalID               *uint      `json:"final_id,omitempty"`
	FinalPath             *string    `json:"final_path,omitempty"`
	FinalSequence         *int       `json:"final_sequence,omitempty"`
	FinalVersion          *string    `json:"final_version,omitempty"`
	ReportPath            *string    `json:"report_path,omitempty"`
	OutputPath            *string    `json:"output_path,omitempty"`
	FinalUpdatedAt        *time.Time `json:"final_updated_at,omitempty"`
}

const catalogColumns = `a.id AS acquisition_id, a.path AS acquisition_path, a.tag AS tag, a.created_at AS created_at,
	h.id AS intermediate_id, h.path AS intermediate_path, h.sequence_no AS intermediate_sequence,
	h.version AS intermediate_version, h.updated_at AS intermediate_updated_at,
	f.id AS final_id, f.path AS final_path, f.sequence_no AS final_sequence, f.version AS final_version,
	f.report_path AS report_path, f.output_path AS output_path, f.updated_at AS final_updated_at`

// CatalogRepository handles read access to the render index
type CatalogRepository struct {
	DB *gorm.DB
}

// NewCatalogRepository creates a new instance of CatalogRepository
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

// Counts returns the row count of every table
func (r *CatalogRepository) Counts() (catalog.Counts, error) {
	var counts catalog.Counts
	targets := []struct {
		model any
		dst   *int
	}{
		{&models.Acquisition{}, &counts.Acquisitions},
		{&models.PreviewAsset{}, &counts.Previews},
		{&models.IntermediateRender{}, &counts.Intermediates},
		{&models.FinalRender{}, &counts.Finals},
	}
	for _, t := range targets {
		var n int64
		if err := r.DB.Model(t.model).Count(&n).Error; err != nil {
			return catalog.Counts{}, fmt.Errorf("failed to count %T: %w", t.model, err)
		}
		*t.dst = int(n)
	}
	return counts, nil
}

// ListCatalog returns the joined catalog in filter.Sort order, the renders of
// each acquisition following their sequence numbers
func (r *CatalogRepository) ListCatalog(filter CatalogFilter) ([]CatalogRow, error) {
	query := r.DB.Table("acquisition AS a").
		Select(catalogColumns).
		Joins("LEFT JOIN intermediate_render AS h ON h.acquisition_id = a.id").
		Joins("LEFT JOIN final_render AS f ON f.intermediate_id = h.id")

	if filter.Tag != "" {
		query = query.Where("a.tag = ?", filter.Tag)
	}
	if filter.Version != "" {
		query = query.Where("h.version = ? OR f.version = ?", filter.Version, filter.Version)
	}
	if filter.PathContains != "" {
		query = query.Where("a.path LIKE ?", "%"+filter.PathContains+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("a.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("a.created_at <= ?", *filter.CreatedTo)
	}
	if filter.Unprocessed {
		query = query.Where("h.id IS NULL")
	}

	// natural order is applied in memory, so the page is cut afterwards
	natural := filter.Sort == database.SortPathNat
	if !natural {
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
	}

	var rows []CatalogRow
	err := query.Order(database.CatalogOrderClause(filter.Sort)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	if natural {
		rows = naturalPage(rows, filter.Offset, filter.Limit)
	}
	return rows, nil
}

// naturalPage stable-sorts rows by acquisition path in natural order and
// returns the requested window.
func naturalPage(rows []CatalogRow, offset, limit int) []CatalogRow {
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := rows[i].AcquisitionPath, rows[j].AcquisitionPath
		if pi == pj {
			return false
		}
		return natsort.Compare(pi, pj)
	})
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// GetAcquisition retrieves one acquisition with its previews and renders
func (r *CatalogRepository) GetAcquisition(id uint) (*models.Acquisition, error) {
	var acq models.Acquisition
	err := r.DB.
		Preload("Previews", func(db *gorm.DB) *gorm.DB { return db.Order("path ASC") }).
		Preload("Intermediates", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_no ASC, id ASC") }).
		Preload("Intermediates.Finals", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_no ASC, id ASC") }).
		First(&acq, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get acquisition by ID %d: %w", id, err)
	}
	return &acq, nil
}

// ListUnprocessed returns acquisitions that have no HD render at all
func (r *CatalogRepository) ListUnprocessed() ([]models.Acquisition, error) {
	var acqs []models.Acquisition
	err := r.DB.
		Where("NOT EXISTS (SELECT 1 FROM intermediate_render h WHERE h.acquisition_id = acquisition.id)").
		Order("path ASC").
		Find(&acqs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed acquisitions: %w", err)
	}
	return acqs, nil
}

// ListIncompleteFinals returns EF renders missing a version, report or output
func (r *CatalogRepository) ListIncompleteFinals() ([]models.FinalRender, error) {
	var finals []models.FinalRender
	err := r.DB.
		Where("version IS NULL OR report_path IS NULL OR output_path IS NULL").
		Order("path ASC").
		Find(&finals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete final renders: %w", err)
	}
	return finals, nil
}

// LatestIntermediates returns, per acquisition, the HD render with the highest
// sequence number, with its EF renders
func (r *CatalogRepository) LatestIntermediates() ([]models.IntermediateRender, error) {
	latest := r.DB.Raw(`SELECT MAX(h.id) FROM intermediate_render h
		JOIN (SELECT acquisition_id, MAX(sequence_no) AS seq FROM intermediate_render GROUP BY acquisition_id) m
		ON m.acquisition_id = h.acquisition_id AND m.seq = h.sequence_no
		GROUP BY h.acquisition_id`)

	var renders []models.IntermediateRender
	err := r.DB.
		Preload("Finals", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_no ASC, id ASC") }).
		Where("id IN (?)", latest).
		Order("path ASC").
		Find(&renders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list latest intermediate renders: %w", err)
	}
	return renders, nil
}

// Versions returns every distinct software version seen in either render
// generation, sorted
func (r *CatalogRepository) Versions() ([]string, error) {
	var versions []string
	err := r.DB.Raw(`SELECT version FROM intermediate_render WHERE version IS NOT NULL
		UNION SELECT version FROM final_render WHERE version IS NOT NULL
		ORDER BY version`).Scan(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}
