package services

import (
	"errors"
	"ludora/auth"
	"ludora/schema"
	"ludora/utils"
	"ludora/validation"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type AuthService struct {
	db       *gorm.DB
	userAuth *auth.Authenticator
}

func (s *AuthService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", s.Register)
	r.Post("/login", s.Login)

	return r
}

type personalInfoRequest struct {
	Name      string `json:"name" validate:"required,max=150"`
	FirstName string `json:"firstName" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=50"`
	Image     string `json:"image"`
	City      string `json:"city" validate:"max=150"`
	ZipCode   string `json:"zipCode" validate:"max=20"`
}

type registerRequest struct {
	Password     string              `json:"password" validate:"required,min=6"`
	RoleId       uuid.UUID           `json:"roleId" validate:"required"`
	SchoolId     *uuid.UUID          `json:"schoolId"`
	ParentId     *uuid.UUID          `json:"parentId"`
	PersonalInfo personalInfoRequest `json:"personalInfo" validate:"required"`
}

type authResponse struct {
	Message string      `json:"message"`
	User    schema.User `json:"user"`
	Token   string      `json:"token"`
}

func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(registerMetric)
	defer timer.ObserveDuration()

	var params registerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	user, err := s.userAuth.CreateUser(auth.NewUserArgs{
		Password:  params.Password,
		RoleId:    params.RoleId,
		SchoolId:  params.SchoolId,
		ParentId:  params.ParentId,
		Name:      params.PersonalInfo.Name,
		FirstName: params.PersonalInfo.FirstName,
		Email:     params.PersonalInfo.Email,
		Phone:     params.PersonalInfo.Phone,
		Image:     params.PersonalInfo.Image,
		City:      params.PersonalInfo.City,
		ZipCode:   params.PersonalInfo.ZipCode,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailAlreadyInUse) {
			writeError(w, CodedError(err, http.StatusBadRequest, kindConflict))
			return
		}
		writeError(w, entityError(err))
		return
	}

	token, err := s.userAuth.CreateUserJwt(user.Id)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError, kindInternal))
		return
	}

	utils.WriteJsonResponse(w, http.StatusCreated, authResponse{
		Message: "User registered successfully",
		User:    user,
		Token:   token,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(loginMetric)
	defer timer.ObserveDuration()

	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := validation.Validate(params); err != nil {
		writeError(w, ValidationError(err))
		return
	}

	login, err := s.userAuth.LoginWithEmail(params.Email, params.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// Identical response for unknown email and wrong password.
			utils.WriteErrorResponse(w, http.StatusUnauthorized, kindCredentials, "Invalid credentials")
			return
		}
		writeError(w, entityError(err))
		return
	}

	utils.WriteJsonResponse(w, http.StatusOK, authResponse{
		Message: "Login successful",
		User:    login.User,
		Token:   login.AccessToken,
	})
}
