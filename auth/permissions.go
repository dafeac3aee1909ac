package auth

import (
	"errors"
	"fmt"
	"ludora/schema"
	"ludora/utils"
	"net/http"

	"gorm.io/gorm"
)

// RequireRoles is the role gate. It only inspects the actor's role, never the
// targeted record; ownership checks run after it in the handler chain.
func RequireRoles(roles ...schema.RoleName) func(http.Handler) http.Handler {
	permitted := make(map[schema.RoleName]struct{}, len(roles))
	for _, role := range roles {
		permitted[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", err.Error())
				return
			}

			if _, ok := permitted[user.RoleName()]; !ok {
				utils.WriteErrorResponse(w, http.StatusForbidden, "Forbidden", fmt.Sprintf("role %v cannot access this endpoint", user.RoleName()))
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func AdminOnly() func(http.Handler) http.Handler {
	return RequireRoles(schema.RoleAdmin)
}

// SelfOrAdminOnly guards user records addressed by a {user_id} url param.
func SelfOrAdminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			userId, err := utils.URLParamUUID(r, "user_id")
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request", err.Error())
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", err.Error())
				return
			}

			if !user.IsAdmin() && user.Id != userId {
				utils.WriteErrorResponse(w, http.StatusForbidden, "Forbidden", fmt.Sprintf("user %v cannot access user %v", user.Id, userId))
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type classPermission int // Private so that no other permissions can be defined

const (
	NoPermission     classPermission = 0
	ReadPermission   classPermission = 1
	ManagePermission classPermission = 2
)

func classPermissionToString(perm classPermission) string {
	switch perm {
	case NoPermission:
		return "None"
	case ReadPermission:
		return "Read"
	case ManagePermission:
		return "Manage"
	default:
		return "invalid permission"
	}
}

// GetClassPermissions is the single policy function for class access. Admins
// and the creator manage the class; a director manages classes of their own
// school; an enrolled member can read. Everyone else gets nothing.
func GetClassPermissions(class schema.Class, user schema.User, db *gorm.DB) (classPermission, error) {
	if user.IsAdmin() {
		return ManagePermission, nil
	}

	if class.CreatedByUserId == user.Id {
		return ManagePermission, nil
	}

	if user.RoleName() == schema.RoleDirector && user.SchoolId != nil &&
		class.SchoolId != nil && *class.SchoolId == *user.SchoolId {
		return ManagePermission, nil
	}

	_, err := schema.GetUserClass(user.Id, class.Id, db)
	if err != nil {
		if errors.Is(err, schema.ErrUserClassNotFound) {
			return NoPermission, nil
		}
		return NoPermission, err
	}

	return ReadPermission, nil
}

// ClassPermissionOnly guards class records addressed by a {class_id} url
// param. The role gate still runs first where the route declares one.
func ClassPermissionOnly(db *gorm.DB, minPermission classPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			classId, err := utils.URLParamUUID(r, "class_id")
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request", err.Error())
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", err.Error())
				return
			}

			class, err := schema.GetClass(classId, db, false)
			if err != nil {
				if errors.Is(err, schema.ErrClassNotFound) {
					utils.WriteErrorResponse(w, http.StatusNotFound, "Not found", err.Error())
					return
				}
				utils.WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", err.Error())
				return
			}

			permission, err := GetClassPermissions(class, user, db)
			if err != nil {
				utils.WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", err.Error())
				return
			}

			if permission >= minPermission {
				next.ServeHTTP(w, r)
				return
			}

			required, actual := classPermissionToString(minPermission), classPermissionToString(permission)
			utils.WriteErrorResponse(w, http.StatusForbidden, "Forbidden",
				fmt.Sprintf("user %v does not have required permission for class %v (required=%v, actual=%v)", user.Id, classId, required, actual))
		}
		return http.HandlerFunc(hfn)
	}
}
