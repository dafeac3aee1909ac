package services

import (
	"errors"
	"fmt"
	"log/slog"
	"ludora/schema"
	"ludora/utils"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Error kinds surfaced in the error envelope. The status code picks the
// transport meaning, the kind gives the caller something stable to branch on.
const (
	kindValidation      = "Validation error"
	kindInvalidRequest  = "Invalid request"
	kindCredentials     = "Invalid credentials"
	kindForbidden       = "Forbidden"
	kindNotFound        = "Not found"
	kindConflict        = "Conflict"
	kindDependentsExist = "Dependents exist"
	kindInternal        = "Internal server error"
)

type codedError struct {
	err  error
	code int
	kind string
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int, kind string) error {
	return &codedError{err: err, code: code, kind: kind}
}

func ValidationError(err error) error {
	return CodedError(err, http.StatusBadRequest, kindValidation)
}

// devMode controls whether 500 responses carry the underlying error detail.
// It is set once at startup.
var devMode = false

func SetDevMode(enabled bool) {
	devMode = enabled
}

func writeError(w http.ResponseWriter, err error) {
	var cerr *codedError
	if !errors.As(err, &cerr) {
		slog.Error("non coded error passed to writeError", "error", err)
		cerr = &codedError{err: err, code: http.StatusInternalServerError, kind: kindInternal}
	}

	message := cerr.Error()
	if cerr.code == http.StatusInternalServerError && !devMode {
		message = "an internal error occurred"
	}

	utils.WriteErrorResponse(w, cerr.code, cerr.kind, message)
}

// entityError maps the typed store errors to coded responses; anything
// unrecognized is treated as an internal failure.
func entityError(err error) error {
	switch {
	case errors.Is(err, schema.ErrUserNotFound),
		errors.Is(err, schema.ErrRoleNotFound),
		errors.Is(err, schema.ErrSchoolNotFound),
		errors.Is(err, schema.ErrClassNotFound),
		errors.Is(err, schema.ErrDomainNotFound),
		errors.Is(err, schema.ErrThemeNotFound),
		errors.Is(err, schema.ErrActivityNotFound),
		errors.Is(err, schema.ErrUserClassNotFound):
		return CodedError(err, http.StatusNotFound, kindNotFound)
	default:
		return CodedError(err, http.StatusInternalServerError, kindInternal)
	}
}

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

type paginationParams struct {
	Page  int
	Limit int
}

func (p paginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func newPaginationResponse(params paginationParams, total int64) paginationResponse {
	pages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	return paginationResponse{Page: params.Page, Limit: params.Limit, Total: total, Pages: pages}
}

func parsePagination(r *http.Request) (paginationParams, error) {
	page, err := utils.QueryParamInt(r, "page", defaultPage)
	if err != nil {
		return paginationParams{}, CodedError(err, http.StatusBadRequest, kindValidation)
	}
	limit, err := utils.QueryParamInt(r, "limit", defaultLimit)
	if err != nil {
		return paginationParams{}, CodedError(err, http.StatusBadRequest, kindValidation)
	}

	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return paginationParams{Page: page, Limit: limit}, nil
}

// paginate runs the count+page queries for a filtered list endpoint.
func paginate(query *gorm.DB, params paginationParams, dest interface{}) (paginationResponse, error) {
	var total int64
	result := query.Session(&gorm.Session{}).Count(&total)
	if result.Error != nil {
		slog.Error("sql error counting records for pagination", "error", result.Error)
		return paginationResponse{}, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
	}

	result = query.Offset(params.Offset()).Limit(params.Limit).Find(dest)
	if result.Error != nil {
		slog.Error("sql error listing records", "error", result.Error)
		return paginationResponse{}, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
	}

	return newPaginationResponse(params, total), nil
}

type messageResponse struct {
	Message string `json:"message"`
}

// countByColumn counts rows of model grouped by the given fk column, for the
// listed ids. Ids absent from the result have no dependent rows.
func countByColumn(db *gorm.DB, model interface{}, column string, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		Id    uuid.UUID
		Count int64
	}
	result := db.Model(model).
		Select(column + " as id, count(*) as count").
		Where(column+" IN ?", ids).
		Group(column).
		Find(&rows)
	if result.Error != nil {
		slog.Error("sql error counting related records", "column", column, "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
	}

	for _, row := range rows {
		counts[row.Id] = row.Count
	}
	return counts, nil
}

// checkNoDependents blocks a delete when dependent rows still reference the
// record. The caller names the relationship for the error message.
func checkNoDependents(txn *gorm.DB, model interface{}, condition string, id interface{}, detail string) error {
	var count int64
	result := txn.Model(model).Where(condition, id).Count(&count)
	if result.Error != nil {
		slog.Error("sql error counting dependent records", "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
	}
	if count > 0 {
		return CodedError(fmt.Errorf("cannot delete: %v", detail), http.StatusBadRequest, kindDependentsExist)
	}
	return nil
}
