package repository

import (
	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/models"
)

// CatalogRepositoryInterface defines the read operations behind the catalog API
type CatalogRepositoryInterface interface {
	Counts() (catalog.Counts, error)
	ListCatalog(filter CatalogFilter) ([]CatalogRow, error)
	GetAcquisition(id uint) (*models.Acquisition, error)
	ListUnprocessed() ([]models.Acquisition, error)
	ListIncompleteFinals() ([]models.FinalRender, error)
	LatestIntermediates() ([]models.IntermediateRender, error)
	Versions() ([]string, error)
}
