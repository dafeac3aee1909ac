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

type ThemeService struct {
	db *gorm.DB
}

func (s *ThemeService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{theme_id}", s.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(schema.RoleAdmin, schema.RoleTeacher, schema.RoleDirector))

		r.Post("/", s.Create)
		r.Put("/{theme_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly())

		r.Delete("/{theme_id}", s.Delete)
	})

	return r
}

type listThemesResponse struct {
	Themes     []schema.Theme     `json:"themes"`
	Pagination paginationResponse `json:"pagination"`
}

func (s *ThemeService) List(w http.ResponseWriter, r *http.Request) {
	params, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := s.db.Model(&schema.Theme{}).Preload("Domain").Order("name")

	if domain := r.URL.Query().Get("domain"); domain != "" {
		query = query.Where("domain_id in (?)",
			s.db.Model(&schema.Domain{}).Select("id").Where("LOWER(name) LIKE ?", "%"+strings.ToLower(domain)+"%"))
	}

	var themes []schema.Theme
	pagination, err := paginate(query, params, &themes)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := make([]uuid.UUID, len(themes))
	for i := range themes {
		ids[i] = themes[i].Id
	}
	counts, err := countByColumn(s.db, &schema.Activity{}, "theme_id", ids)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range themes {
		themes[i].ActivityCount = counts[themes[i].Id]
	}

	utils.WriteJsonResponse(w, http.StatusOK, listThemesResponse{Themes: themes, Pagination: pagination})
}

type themeResponse struct {
	Message string       `json:"message,omitempty"`
	Theme   schema.Theme `json:"theme"`
}

func (s *ThemeService) Get(w http.ResponseWriter, r *http.Request) {
	themeId, err := utils.URLParamUUID(r, "theme_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var theme schema.Theme
	result := s.db.Preload("Domain").Preload("Activities").First(&theme, "id = ?", themeId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			writeError(w, entityError(schema.ErrThemeNotFound))
			return
		}
		slog.Error("sql error in get theme", "theme_id", themeId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, themeResponse{Theme: theme})
}

type createThemeRequest struct {
	Name     string     `json:"name" validate:"required,max=150"`
	DomainId *uuid.UUID `json:"domainId"`
}

func (s *ThemeService) Create(w http.ResponseWriter, r *http.Request) {
	var params createThemeRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	theme := schema.Theme{Id: uuid.New(), Name: params.Name, DomainId: params.DomainId}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if params.DomainId != nil {
			if _, err := schema.GetDomain(*params.DomainId, txn); err != nil {
				return entityError(err)
			}
		}

		var existing schema.Theme
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for existing theme name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("a theme with this name already exists"), http.StatusBadRequest, kindConflict)
		}

		result = txn.Create(&theme)
		if result.Error != nil {
			slog.Error("sql error creating theme", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, themeResponse{Message: "Theme created successfully", Theme: theme})
}

// updateThemeRequest is a patch: nil fields are left untouched.
type updateThemeRequest struct {
	Name     *string    `json:"name" validate:"omitempty,max=150"`
	DomainId *uuid.UUID `json:"domainId"`
}

func (s *ThemeService) Update(w http.ResponseWriter, r *http.Request) {
	themeId, err := utils.URLParamUUID(r, "theme_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	var params updateThemeRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	var theme schema.Theme
	err = s.db.Transaction(func(txn *gorm.DB) error {
		theme, err = schema.GetTheme(themeId, txn)
		if err != nil {
			return entityError(err)
		}

		if params.Name != nil && *params.Name != theme.Name {
			var existing schema.Theme
			result := txn.Limit(1).Find(&existing, "name = ?", *params.Name)
			if result.Error != nil {
				slog.Error("sql error checking for existing theme name", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
			}
			if result.RowsAffected != 0 {
				return CodedError(errors.New("a theme with this name already exists"), http.StatusBadRequest, kindConflict)
			}
			theme.Name = *params.Name
		}
		if params.DomainId != nil {
			if _, err := schema.GetDomain(*params.DomainId, txn); err != nil {
				return entityError(err)
			}
			theme.DomainId = params.DomainId
		}

		result := txn.Model(&schema.Theme{}).Where("id = ?", theme.Id).Updates(map[string]interface{}{
			"name":      theme.Name,
			"domain_id": theme.DomainId,
		})
		if result.Error != nil {
			slog.Error("sql error updating theme", "theme_id", theme.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, themeResponse{Message: "Theme updated successfully", Theme: theme})
}

func (s *ThemeService) Delete(w http.ResponseWriter, r *http.Request) {
	themeId, err := utils.URLParamUUID(r, "theme_id")
	if err != nil {
		writeError(w, CodedError(err, http.StatusBadRequest, kindInvalidRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		theme, err := schema.GetTheme(themeId, txn)
		if err != nil {
			return entityError(err)
		}

		if err := checkNoDependents(txn, &schema.Activity{}, "theme_id = ?", themeId, "activities still reference this theme"); err != nil {
			return err
		}

		result := txn.Delete(&theme)
		if result.Error != nil {
			slog.Error("sql error deleting theme", "theme_id", themeId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError, kindInternal)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, messageResponse{Message: "Theme deleted successfully"})
}
