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
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly())

		r.Get("/", s.List)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.SelfOrAdminOnly())

		r.Get("/{user_id}", s.Get)
		r.Put("/{user_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly())

		r.Delete("/{user_id}", s.Delete)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(schema.RoleAdmin, schema.RoleTeacher, schema.RoleDirector))
		r.Use(auth.ClassPermissionOnly(s.db, auth.ManagePermission))

		r.Post("/{user_id}/classes/{class_id}", s.AddToClass)
		r.Delete("/{user_id}/classes/{class_id}", s.RemoveFromClass)
	})

	return r
}

type listUsersResponse struct {
	Users      []schema.User      `json:"users"`
	Pagination paginationResponse `json:"pagination"`
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	params, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := s.db.Model(&schema.User{}).
		Preload("Role").Preload("PersonalInfo").Preload("School").
		Preload("Parent").Preload("Parent.PersonalInfo").
		Preload("Children").Preload("Children.PersonalInfo").
		Order("created_at desc")

	if role := r.URL.Query().Get("role"); role != "" {
		if !schema.RoleName(role).Valid() {
			writeError(w, ValidationError(fmt.Errorf("unknown role '%v'", role)))
			return
		}
		query = query.Where("role_id in (?)",
			s.db.Model(&schema.Role{}).Select("id").Where("name = ?", role))
	}

	if school := r.URL.Query().Get("school"); school != "" {
		query = query.Where("school_id in (?)",
			s.db.Model(&schema.School{}).Select("id").Where("LOWER(name) LIKE ?", "%"+strings.ToLower(school)+"%"))
	}

	var users []schema.User
	pagination, err := paginate(query, params, &users)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, listUsersResponse{Users: users, Pagination: pagination})
}

type userResponse struct {
	Message string      `json:"message,omitempty"`
	User    schema.User `json:"user"`
}

func (s *UserService) Get(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	user, err := schema.GetUser(userId, s.db)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, userResponse{User: user})
}

type personalInfoPatch struct {
	Name      *string `json:"name" validate:"omitempty,max=150"`
	FirstName *string `json:"firstName" validate:"omitempty,max=150"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	Image     *string `json:"image"`
	City      *string `json:"city" validate:"omitempty,max=150"`
	ZipCode   *string `json:"zipCode" validate:"omitempty,max=20"`
}

// updateUserRequest is a patch: nil fields are left untouched.
type updateUserRequest struct {
	Password     *string            `json:"password" validate:"omitempty,min=6"`
	RoleId       *uuid.UUID         `json:"roleId"`
	SchoolId     *uuid.UUID         `json:"schoolId"`
	ParentId     *uuid.UUID         `json:"parentId"`
	PersonalInfo *personalInfoPatch `json:"personalInfo"`
}

func (s *UserService) Update(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var params updateUserRequest
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

	if params.RoleId != nil && !actor.IsAdmin() {
		writeError(w, CodedError(errors.New("only an admin can change a user's role"), http.StatusForbidden, kindForbidden))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			return entityError(err)
		}

		if params.Password != nil {
			hashed, err := bcrypt.GenerateFromPassword([]byte(*params.Password), 12)
			if err != nil {
				return CodedError(fmt.Errorf("error encrypting password: %w", err), http.StatusInternalServerError, kindInternal)
			}
			user.Password = hashed
		}
		if params.RoleId != nil {
			if _, err := schema.GetRole(*params.RoleId, txn); err != nil {
				return entityError(err)
			}
			user.RoleId = *params.RoleId
		}
		if params.SchoolId != nil {
			if _, err := schema.GetSchool(*params.SchoolId, txn); err != nil {
				return entityError(err)
			}
			user.SchoolId = params.SchoolId
		}
		if params.ParentId != nil {
			if _, err := schema.GetUser(*params.ParentId, txn); err != nil {
				return entityError(err)
			}
			user.ParentId = params.ParentId
		}

		result := txn.Model(&schema.User{}).Where("id = ?", user.Id).Updates(map[string]interface{}{
			"password":  user.Password,
			"role_id":   user.RoleId,
			"school_id": user.SchoolId,
			"parent_id": user.ParentId,
		})
		if result.Error != nil {
			slog.Error("sql error updating user", "user_id", user.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}

		if params.PersonalInfo != nil {
			return updatePersonalInfo(txn, user, params.PersonalInfo)
		}

		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := schema.GetUser(userId, s.db)
	if err != nil {
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, userResponse{Message: "User updated successfully", User: user})
}

func updatePersonalInfo(txn *gorm.DB, user schema.User, patch *personalInfoPatch) error {
	info := user.PersonalInfo
	if info == nil {
		return CodedError(fmt.Errorf("user %v has no personal info record", user.Id), http.StatusInternalServerError, kindInternal)
	}

	if patch.Email != nil && *patch.Email != info.Email {
		var existing schema.PersonalInfo
		result := txn.Limit(1).Find(&existing, "email = ?", *patch.Email)
		if result.Error != nil {
			slog.Error("sql error checking for existing email", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(auth.ErrEmailAlreadyInUse, http.StatusBadRequest, kindConflict)
		}
		info.Email = *patch.Email
	}

	if patch.Name != nil {
		info.Name = *patch.Name
	}
	if patch.FirstName != nil {
		info.FirstName = *patch.FirstName
	}
	if patch.Phone != nil {
		info.Phone = *patch.Phone
	}
	if patch.Image != nil {
		info.Image = *patch.Image
	}
	if patch.City != nil {
		info.City = *patch.City
	}
	if patch.ZipCode != nil {
		info.ZipCode = *patch.ZipCode
	}

	result := txn.Model(&schema.PersonalInfo{}).Where("user_id = ?", user.Id).Updates(map[string]interface{}{
		"name":       info.Name,
		"first_name": info.FirstName,
		"email":      info.Email,
		"phone":      info.Phone,
		"image":      info.Image,
		"city":       info.City,
		"zip_code":   info.ZipCode,
	})
	if result.Error != nil {
		slog.Error("sql error updating personal info", "user_id", user.Id, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
	}

	return nil
}

func (s *UserService) Delete(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			return entityError(err)
		}

		// No dependents guard here: classes created by the user and children
		// referencing them as parent survive the delete.
		result := txn.Select("PersonalInfo", "Classes").Delete(&user)
		if result.Error != nil {
			slog.Error("sql error deleting user", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "User deleted successfully"})
}

func (s *UserService) AddToClass(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}
	classId, err := utils.URLParamUUID(r, "class_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetUser(userId, txn); err != nil {
			return entityError(err)
		}
		if _, err := schema.GetClass(classId, txn, false); err != nil {
			return entityError(err)
		}

		var existing schema.UserClass
		result := txn.Limit(1).Find(&existing, "user_id = ? and class_id = ?", userId, classId)
		if result.Error != nil {
			slog.Error("sql error checking for existing class membership", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("user is already enrolled in this class"), http.StatusBadRequest, kindConflict)
		}

		result = txn.Create(&schema.UserClass{UserId: userId, ClassId: classId})
		if result.Error != nil {
			slog.Error("sql error creating class membership", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, messageResponse{Message: "User added to class successfully"})
}

func (s *UserService) RemoveFromClass(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}
	classId, err := utils.URLParamUUID(r, "class_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		membership, err := schema.GetUserClass(userId, classId, txn)
		if err != nil {
			return entityError(err)
		}

		result := txn.Where("user_id = ? and class_id = ?", membership.UserId, membership.ClassId).Delete(&schema.UserClass{})
		if result.Error != nil {
			slog.Error("sql error deleting class membership", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "User removed from class successfully"})
}
