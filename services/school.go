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

type SchoolService struct {
	db *gorm.DB
}

func (s *SchoolService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{school_id}", s.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(schema.RoleAdmin, schema.RoleDirector))

		r.Post("/", s.Create)
		r.Put("/{school_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly())

		r.Delete("/{school_id}", s.Delete)
	})

	return r
}

type listSchoolsResponse struct {
	Schools    []schema.School    `json:"schools"`
	Pagination paginationResponse `json:"pagination"`
}

func (s *SchoolService) List(w http.ResponseWriter, r *http.Request) {
	params, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := s.db.Model(&schema.School{}).Order("name")

	if city := r.URL.Query().Get("city"); city != "" {
		query = query.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(city)+"%")
	}

	var schools []schema.School
	pagination, err := paginate(query, params, &schools)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, listSchoolsResponse{Schools: schools, Pagination: pagination})
}

type schoolResponse struct {
	Message string        `json:"message,omitempty"`
	School  schema.School `json:"school"`
}

func (s *SchoolService) Get(w http.ResponseWriter, r *http.Request) {
	schoolId, err := utils.URLParamUUID(r, "school_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	school, err := schema.GetSchool(schoolId, s.db)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, schoolResponse{School: school})
}

type createSchoolRequest struct {
	Name    string `json:"name" validate:"required,max=150"`
	City    string `json:"city" validate:"max=150"`
	ZipCode string `json:"zipCode" validate:"max=20"`
}

func (s *SchoolService) Create(w http.ResponseWriter, r *http.Request) {
	var params createSchoolRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	school := schema.School{
		Id:      uuid.New(),
		Name:    params.Name,
		City:    params.City,
		ZipCode: params.ZipCode,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.School
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for existing school name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("a school with this name already exists"), http.StatusBadRequest, kindConflict)
		}

		result = txn.Create(&school)
		if result.Error != nil {
			slog.Error("sql error creating school", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, schoolResponse{Message: "School created successfully", School: school})
}

// updateSchoolRequest is a patch: nil fields are left untouched.
type updateSchoolRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=150"`
	City    *string `json:"city" validate:"omitempty,max=150"`
	ZipCode *string `json:"zipCode" validate:"omitempty,max=20"`
}

func (s *SchoolService) Update(w http.ResponseWriter, r *http.Request) {
	schoolId, err := utils.URLParamUUID(r, "school_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var params updateSchoolRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	actor, err := auth.UserFromContext(r)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError, kindInternal))
		return
	}

	// A director may only update their own school.
	if !actor.IsAdmin() && (actor.SchoolId == nil || *actor.SchoolId != schoolId) {
		writeError(w, CodedError(errors.New("directors can only update their own school"), http.StatusForbidden, kindForbidden))
		return
	}

	var school schema.School
	err = s.db.Transaction(func(txn *gorm.DB) error {
		school, err = schema.GetSchool(schoolId, txn)
		if err != nil {
			return entityError(err)
		}

		if params.Name != nil && *params.Name != school.Name {
			var existing schema.School
			result := txn.Limit(1).Find(&existing, "name = ?", *params.Name)
			if result.Error != nil {
				slog.Error("sql error checking for existing school name", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
			}
			if result.RowsAffected != 0 {
				return CodedError(errors.New("a school with this name already exists"), http.StatusBadRequest, kindConflict)
			}
			school.Name = *params.Name
		}
		if params.City != nil {
			school.City = *params.City
		}
		if params.ZipCode != nil {
			school.ZipCode = *params.ZipCode
		}

		result := txn.Model(&schema.School{}).Where("id = ?", school.Id).Updates(map[string]interface{}{
			"name":     school.Name,
			"city":     school.City,
			"zip_code": school.ZipCode,
		})
		if result.Error != nil {
			slog.Error("sql error updating school", "school_id", school.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, schoolResponse{Message: "School updated successfully", School: school})
}

func (s *SchoolService) Delete(w http.ResponseWriter, r *http.Request) {
	schoolId, err := utils.URLParamUUID(r, "school_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		school, err := schema.GetSchool(schoolId, txn)
		if err != nil {
			return entityError(err)
		}

		if err := checkNoDependents(txn, &schema.User{}, "school_id = ?", schoolId, "users are still assigned to this school"); err != nil {
			return err
		}
		if err := checkNoDependents(txn, &schema.Class{}, "school_id = ?", schoolId, "classes still belong to this school"); err != nil {
			return err
		}

		result := txn.Delete(&school)
		if result.Error != nil {
			slog.Error("sql error deleting school", "school_id", schoolId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "School deleted successfully"})
}
