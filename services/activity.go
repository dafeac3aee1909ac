package services

import (
	"errors"
	"log/slog"
	"ludora/auth"
	"ludora/schema"
	"ludora/utils"
	"ludora/validation"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityService struct {
	db *gorm.DB
}

func (s *ActivityService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{activity_id}", s.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(schema.RoleAdmin, schema.RoleTeacher, schema.RoleDirector))

		r.Post("/", s.Create)
		r.Put("/{activity_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly())

		r.Delete("/{activity_id}", s.Delete)
	})

	return r
}

type listActivitiesResponse struct {
	Activities []schema.Activity  `json:"activities"`
	Pagination paginationResponse `json:"pagination"`
}

func (s *ActivityService) List(w http.ResponseWriter, r *http.Request) {
	params, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := s.db.Model(&schema.Activity{}).Preload("Theme").Order("name")

	if theme := r.URL.Query().Get("theme"); theme != "" {
		query = query.Where("theme_id in (?)",
			s.db.Model(&schema.Theme{}).Select("id").Where("LOWER(name) LIKE ?", "%"+strings.ToLower(theme)+"%"))
	}

	var activities []schema.Activity
	pagination, err := paginate(query, params, &activities)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, listActivitiesResponse{Activities: activities, Pagination: pagination})
}

type activityResponse struct {
	Message  string          `json:"message,omitempty"`
	Activity schema.Activity `json:"activity"`
}

func (s *ActivityService) Get(w http.ResponseWriter, r *http.Request) {
	activityId, err := utils.URLParamUUID(r, "activity_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	activity, err := schema.GetActivity(activityId, s.db)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, activityResponse{Activity: activity})
}

type createActivityRequest struct {
	Name    string    `json:"name" validate:"required,max=150"`
	ThemeId uuid.UUID `json:"themeId" validate:"required"`
}

func (s *ActivityService) Create(w http.ResponseWriter, r *http.Request) {
	var params createActivityRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	activity := schema.Activity{Id: uuid.New(), Name: params.Name, ThemeId: params.ThemeId}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetTheme(params.ThemeId, txn); err != nil {
			return entityError(err)
		}

		var existing schema.Activity
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for existing activity name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("an activity with this name already exists"), http.StatusBadRequest, kindConflict)
		}

		result = txn.Create(&activity)
		if result.Error != nil {
			slog.Error("sql error creating activity", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, activityResponse{Message: "Activity created successfully", Activity: activity})
}

// updateActivityRequest is a patch: nil fields are left untouched.
type updateActivityRequest struct {
	Name    *string    `json:"name" validate:"omitempty,max=150"`
	ThemeId *uuid.UUID `json:"themeId"`
}

func (s *ActivityService) Update(w http.ResponseWriter, r *http.Request) {
	activityId, err := utils.URLParamUUID(r, "activity_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var params updateActivityRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	var activity schema.Activity
	err = s.db.Transaction(func(txn *gorm.DB) error {
		activity, err = schema.GetActivity(activityId, txn)
		if err != nil {
			return entityError(err)
		}

		if params.Name != nil && *params.Name != activity.Name {
			var existing schema.Activity
			result := txn.Limit(1).Find(&existing, "name = ?", *params.Name)
			if result.Error != nil {
				slog.Error("sql error checking for existing activity name", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
			}
			if result.RowsAffected != 0 {
				return CodedError(errors.New("an activity with this name already exists"), http.StatusBadRequest, kindConflict)
			}
			activity.Name = *params.Name
		}
		if params.ThemeId != nil {
			if _, err := schema.GetTheme(*params.ThemeId, txn); err != nil {
				return entityError(err)
			}
			activity.ThemeId = *params.ThemeId
		}

		result := txn.Model(&schema.Activity{}).Where("id = ?", activity.Id).Updates(map[string]interface{}{
			"name":     activity.Name,
			"theme_id": activity.ThemeId,
		})
		if result.Error != nil {
			slog.Error("sql error updating activity", "activity_id", activity.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, activityResponse{Message: "Activity updated successfully", Activity: activity})
}

// Delete has no dependents guard; nothing references an activity.
func (s *ActivityService) Delete(w http.ResponseWriter, r *http.Request) {
	activityId, err := utils.URLParamUUID(r, "activity_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		activity, err := schema.GetActivity(activityId, txn)
		if err != nil {
			return entityError(err)
		}

		result := txn.Delete(&activity)
		if result.Error != nil {
			slog.Error("sql error deleting activity", "activity_id", activityId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "Activity deleted successfully"})
}
