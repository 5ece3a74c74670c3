package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/repository"
)

const maxPageSize = 1000

type CatalogHandler struct {
	Repo repository.CatalogRepositoryInterface
	Log  *logging.Logger
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return &t, nil
}

func parseNonNegative(value, name string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return n, nil
}

func catalogFilter(r *http.Request) (repository.CatalogFilter, error) {
	q := r.URL.Query()
	filter := repository.CatalogFilter{
		Tag:          q.Get("tag"),
		Version:      q.Get("version"),
		PathContains: q.Get("path"),
	}

	var err error
	if filter.CreatedFrom, err = parseDate(q.Get("from")); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseDate(q.Get("to")); err != nil {
		return filter, err
	}
	if filter.CreatedTo != nil {
		// inclusive upper bound on whole days
		end := filter.CreatedTo.Add(24*time.Hour - time.Nanosecond)
		filter.CreatedTo = &end
	}
	filter.Sort = q.Get("sort")
	if filter.Sort == "" {
		filter.Sort = database.DefaultSortOrder
	}
	if !database.IsValidSortOrder(filter.Sort) {
		return filter, fmt.Errorf("invalid sort order %q", filter.Sort)
	}
	if v := q.Get("unprocessed"); v != "" {
		if filter.Unprocessed, err = strconv.ParseBool(v); err != nil {
			return filter, fmt.Errorf("invalid unprocessed flag %q", v)
		}
	}
	if filter.Limit, err = parseNonNegative(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Limit == 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset, err = parseNonNegative(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// ListCatalog serves GET /api/catalog.
func (h *CatalogHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	filter, err := catalogFilter(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	rows, err := h.Repo.ListCatalog(filter)
	if err != nil {
		h.Log.Error("error listing catalog", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve catalog")
		return
	}
	if rows == nil {
		rows = []repository.CatalogRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetAcquisition serves GET /api/acquisitions/{acquisition_id}.
func (h *CatalogHandler) GetAcquisition(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "acquisition_id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid acquisition ID")
		return
	}

	acq, err := h.Repo.GetAcquisition(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Acquisition not found")
			return
		}
		h.Log.Error("error fetching acquisition", zap.Uint64("id", id), zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve acquisition")
		return
	}
	writeJSON(w, http.StatusOK, acq)
}

// ListUnprocessed serves GET /api/acquisitions/unprocessed.
func (h *CatalogHandler) ListUnprocessed(w http.ResponseWriter, r *http.Request) {
	acqs, err := h.Repo.ListUnprocessed()
	if err != nil {
		h.Log.Error("error listing unprocessed acquisitions", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve unprocessed acquisitions")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(acqs))
}

// ListIncompleteFinals serves GET /api/finals/incomplete.
func (h *CatalogHandler) ListIncompleteFinals(w http.ResponseWriter, r *http.Request) {
	finals, err := h.Repo.ListIncompleteFinals()
	if err != nil {
		h.Log.Error("error listing incomplete final renders", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve incomplete final renders")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(finals))
}

// LatestIntermediates serves GET /api/intermediates/latest.
func (h *CatalogHandler) LatestIntermediates(w http.ResponseWriter, r *http.Request) {
	renders, err := h.Repo.LatestIntermediates()
	if err != nil {
		h.Log.Error("error listing latest intermediate renders", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve latest intermediate renders")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(renders))
}

type statsResponse struct {
	Counts   catalog.Counts `json:"counts"`
	Versions []string       `json:"versions"`
}

// Stats serves GET /api/stats.
func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Repo.Counts()
	if err != nil {
		h.Log.Error("error counting rows", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve statistics")
		return
	}
	versions, err := h.Repo.Versions()
	if err != nil {
		h.Log.Error("error listing versions", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve statistics")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Counts: counts, Versions: emptyIfNil(versions)})
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
