package services

import (
	"errors"
	"fmt"
	"log/slog"
	"ludora/auth"
	"ludora/schema"
	"ludora/utils"
	"ludora/validation"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleService struct {
	db *gorm.DB
}

func (s *RoleService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{role_id}", s.Get)

	// The role table feeds authorization, so every write is admin only.
	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly())

		r.Post("/", s.Create)
		r.Put("/{role_id}", s.Update)
		r.Delete("/{role_id}", s.Delete)
	})

	return r
}

type listRolesResponse struct {
	Roles      []schema.Role      `json:"roles"`
	Pagination paginationResponse `json:"pagination"`
}

func (s *RoleService) List(w http.ResponseWriter, r *http.Request) {
	params, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var roles []schema.Role
	pagination, err := paginate(s.db.Model(&schema.Role{}).Order("name"), params, &roles)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := make([]uuid.UUID, len(roles))
	for i := range roles {
		ids[i] = roles[i].Id
	}
	counts, err := countByColumn(s.db, &schema.User{}, "role_id", ids)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range roles {
		roles[i].UserCount = counts[roles[i].Id]
	}

	utils.WriteJsonResponse(w, http.StatusOK, listRolesResponse{Roles: roles, Pagination: pagination})
}

type roleResponse struct {
	Message string      `json:"message,omitempty"`
	Role    schema.Role `json:"role"`
}

func (s *RoleService) Get(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	role, err := schema.GetRole(roleId, s.db)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, roleResponse{Role: role})
}

type roleRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// Authorization dispatches on role names, so the set is closed: a role row
// can only carry one of the known names.
func (s *RoleService) Create(w http.ResponseWriter, r *http.Request) {
	var params roleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	name := schema.RoleName(params.Name)
	if !name.Valid() {
		writeError(w, ValidationError(fmt.Errorf("unknown role name '%v'", params.Name)))
		return
	}

	role := schema.Role{Id: uuid.New(), Name: name}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Role
		result := txn.Limit(1).Find(&existing, "name = ?", name)
		if result.Error != nil {
			slog.Error("sql error checking for existing role", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("a role with this name already exists"), http.StatusBadRequest, kindConflict)
		}

		result = txn.Create(&role)
		if result.Error != nil {
			slog.Error("sql error creating role", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, roleResponse{Message: "Role created successfully", Role: role})
}

func (s *RoleService) Update(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var params roleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	name := schema.RoleName(params.Name)
	if !name.Valid() {
		writeError(w, ValidationError(fmt.Errorf("unknown role name '%v'", params.Name)))
		return
	}

	var role schema.Role
	err = s.db.Transaction(func(txn *gorm.DB) error {
		role, err = schema.GetRole(roleId, txn)
		if err != nil {
			return entityError(err)
		}

		if name != role.Name {
			var existing schema.Role
			result := txn.Limit(1).Find(&existing, "name = ?", name)
			if result.Error != nil {
				slog.Error("sql error checking for existing role", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
			}
			if result.RowsAffected != 0 {
				return CodedError(errors.New("a role with this name already exists"), http.StatusBadRequest, kindConflict)
			}
		}

		role.Name = name
		result := txn.Model(&schema.Role{}).Where("id = ?", role.Id).Update("name", role.Name)
		if result.Error != nil {
			slog.Error("sql error updating role", "role_id", role.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, roleResponse{Message: "Role updated successfully", Role: role})
}

func (s *RoleService) Delete(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		role, err := schema.GetRole(roleId, txn)
		if err != nil {
			return entityError(err)
		}

		if err := checkNoDependents(txn, &schema.User{}, "role_id = ?", roleId, "users still hold this role"); err != nil {
			return err
		}

		result := txn.Delete(&role)
		if result.Error != nil {
			slog.Error("sql error deleting role", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "Role deleted successfully"})
}
