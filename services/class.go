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

type ClassService struct {
	db *gorm.DB
}

func (s *ClassService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.ClassPermissionOnly(s.db, auth.ReadPermission))

		r.Get("/{class_id}", s.Get)
		r.Get("/{class_id}/students", s.ListStudents)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(schema.RoleAdmin, schema.RoleTeacher, schema.RoleDirector))

		r.Post("/", s.Create)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(schema.RoleAdmin, schema.RoleTeacher, schema.RoleDirector))
		r.Use(auth.ClassPermissionOnly(s.db, auth.ManagePermission))

		r.Put("/{class_id}", s.Update)
		r.Delete("/{class_id}", s.Delete)
	})

	return r
}

type listClassesResponse struct {
	Classes    []schema.Class     `json:"classes"`
	Pagination paginationResponse `json:"pagination"`
}

// List returns the classes visible to the actor: everything for an admin,
// classes they created for a teacher, the school's classes for a director,
// and enrolled classes for everyone else.
func (s *ClassService) List(w http.ResponseWriter, r *http.Request) {
	params, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	actor, err := auth.UserFromContext(r)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError, kindInternal))
		return
	}

	query := s.db.Model(&schema.Class{}).
		Preload("CreatedBy").Preload("CreatedBy.PersonalInfo").Preload("School").
		Order("created_at desc")

	if school := r.URL.Query().Get("school"); school != "" {
		query = query.Where("school_id in (?)",
			s.db.Model(&schema.School{}).Select("id").Where("LOWER(name) LIKE ?", "%"+strings.ToLower(school)+"%"))
	}

	switch actor.RoleName() {
	case schema.RoleAdmin:
		// No scoping.
	case schema.RoleTeacher:
		query = query.Where("created_by_user_id = ?", actor.Id)
	case schema.RoleDirector:
		if actor.SchoolId == nil {
			utils.WriteJsonResponse(w, http.StatusOK, listClassesResponse{
				Classes:    []schema.Class{},
				Pagination: newPaginationResponse(params, 0),
			})
			return
		}
		query = query.Where("school_id = ?", *actor.SchoolId)
	default:
		query = query.Where("id in (?)",
			s.db.Model(&schema.UserClass{}).Select("class_id").Where("user_id = ?", actor.Id))
	}

	var classes []schema.Class
	pagination, err := paginate(query, params, &classes)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := make([]uuid.UUID, len(classes))
	for i := range classes {
		ids[i] = classes[i].Id
	}
	counts, err := countByColumn(s.db, &schema.UserClass{}, "class_id", ids)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range classes {
		classes[i].StudentCount = counts[classes[i].Id]
	}

	utils.WriteJsonResponse(w, http.StatusOK, listClassesResponse{Classes: classes, Pagination: pagination})
}

type classResponse struct {
	Message string       `json:"message,omitempty"`
	Class   schema.Class `json:"class"`
}

func (s *ClassService) Get(w http.ResponseWriter, r *http.Request) {
	classId, err := utils.URLParamUUID(r, "class_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	class, err := schema.GetClass(classId, s.db, false)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, classResponse{Class: class})
}

type listStudentsResponse struct {
	Students []schema.User `json:"students"`
}

func (s *ClassService) ListStudents(w http.ResponseWriter, r *http.Request) {
	classId, err := utils.URLParamUUID(r, "class_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	class, err := schema.GetClass(classId, s.db, true)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	students := make([]schema.User, 0, len(class.Members))
	for _, member := range class.Members {
		if member.User != nil {
			students = append(students, *member.User)
		}
	}

	utils.WriteJsonResponse(w, http.StatusOK, listStudentsResponse{Students: students})
}

type createClassRequest struct {
	Name     string     `json:"name" validate:"required,max=150"`
	SchoolId *uuid.UUID `json:"schoolId"`
}

func (s *ClassService) Create(w http.ResponseWriter, r *http.Request) {
	var params createClassRequest
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

	schoolId := params.SchoolId
	if schoolId == nil {
		schoolId = actor.SchoolId
	}

	// A director cannot create classes outside their own school.
	if actor.RoleName() == schema.RoleDirector && schoolId != nil &&
		(actor.SchoolId == nil || *schoolId != *actor.SchoolId) {
		writeError(w, CodedError(errors.New("directors can only create classes for their own school"), http.StatusForbidden, kindForbidden))
		return
	}

	class := schema.Class{
		Id:              uuid.New(),
		Name:            params.Name,
		CreatedByUserId: actor.Id,
		SchoolId:        schoolId,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if schoolId != nil {
			if _, err := schema.GetSchool(*schoolId, txn); err != nil {
				return entityError(err)
			}
		}

		var existing schema.Class
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for existing class name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("a class with this name already exists"), http.StatusBadRequest, kindConflict)
		}

		result = txn.Create(&class)
		if result.Error != nil {
			slog.Error("sql error creating class", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := schema.GetClass(class.Id, s.db, false)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, classResponse{Message: "Class created successfully", Class: created})
}

// updateClassRequest is a patch: nil fields are left untouched, so a rename
// never clears the school or creator.
type updateClassRequest struct {
	Name     *string    `json:"name" validate:"omitempty,max=150"`
	SchoolId *uuid.UUID `json:"schoolId"`
}

func (s *ClassService) Update(w http.ResponseWriter, r *http.Request) {
	classId, err := utils.URLParamUUID(r, "class_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var params updateClassRequest
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

	if params.SchoolId != nil && actor.RoleName() == schema.RoleDirector &&
		(actor.SchoolId == nil || *params.SchoolId != *actor.SchoolId) {
		writeError(w, CodedError(errors.New("directors can only move classes within their own school"), http.StatusForbidden, kindForbidden))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		class, err := schema.GetClass(classId, txn, false)
		if err != nil {
			return entityError(err)
		}

		if params.Name != nil && *params.Name != class.Name {
			var existing schema.Class
			result := txn.Limit(1).Find(&existing, "name = ?", *params.Name)
			if result.Error != nil {
				slog.Error("sql error checking for existing class name", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
			}
			if result.RowsAffected != 0 {
				return CodedError(errors.New("a class with this name already exists"), http.StatusBadRequest, kindConflict)
			}
			class.Name = *params.Name
		}
		if params.SchoolId != nil {
			if _, err := schema.GetSchool(*params.SchoolId, txn); err != nil {
				return entityError(err)
			}
			class.SchoolId = params.SchoolId
		}

		result := txn.Model(&schema.Class{}).Where("id = ?", class.Id).Updates(map[string]interface{}{
			"name":      class.Name,
			"school_id": class.SchoolId,
		})
		if result.Error != nil {
			slog.Error("sql error updating class", "class_id", class.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	class, err := schema.GetClass(classId, s.db, false)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, classResponse{Message: "Class updated successfully", Class: class})
}

func (s *ClassService) Delete(w http.ResponseWriter, r *http.Request) {
	classId, err := utils.URLParamUUID(r, "class_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		class, err := schema.GetClass(classId, txn, false)
		if err != nil {
			return entityError(err)
		}

		// Memberships go with the class.
		result := txn.Where("class_id = ?", classId).Delete(&schema.UserClass{})
		if result.Error != nil {
			slog.Error("sql error deleting class memberships", "class_id", classId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}

		result = txn.Delete(&class)
		if result.Error != nil {
			slog.Error("sql error deleting class", "class_id", classId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "Class deleted successfully"})
}
