package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrRoleNotFound      = errors.New("role not found")
	ErrSchoolNotFound    = errors.New("school not found")
	ErrClassNotFound     = errors.New("class not found")
	ErrDomainNotFound    = errors.New("domain not found")
	ErrThemeNotFound     = errors.New("theme not found")
	ErrActivityNotFound  = errors.New("activity not found")
	ErrUserClassNotFound = errors.New("class membership not found")
	ErrDbAccessFailed    = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.Preload("Role").Preload("PersonalInfo").First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

// GetUserByEmail resolves the login identity; email is unique on PersonalInfo.
func GetUserByEmail(email string, db *gorm.DB) (User, error) {
	var info PersonalInfo
	result := db.First(&info, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		slog.Error("sql error looking up personal info by email", "error", result.Error)
		return User{}, ErrDbAccessFailed
	}

	return GetUser(info.UserId, db)
}

func GetRole(roleId uuid.UUID, db *gorm.DB) (Role, error) {
	var role Role

	result := db.First(&role, "id = ?", roleId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return role, ErrRoleNotFound
		}
		slog.Error("sql error in get role", "role_id", roleId, "error", result.Error)
		return role, ErrDbAccessFailed
	}

	return role, nil
}

func GetRoleByName(name RoleName, db *gorm.DB) (Role, error) {
	var role Role

	result := db.First(&role, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return role, ErrRoleNotFound
		}
		slog.Error("sql error in get role by name", "role", name, "error", result.Error)
		return role, ErrDbAccessFailed
	}

	return role, nil
}

func GetSchool(schoolId uuid.UUID, db *gorm.DB) (School, error) {
	var school School

	result := db.First(&school, "id = ?", schoolId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return school, ErrSchoolNotFound
		}
		slog.Error("sql error in get school", "school_id", schoolId, "error", result.Error)
		return school, ErrDbAccessFailed
	}

	return school, nil
}

func GetClass(classId uuid.UUID, db *gorm.DB, loadMembers bool) (Class, error) {
	var class Class

	query := db.Preload("CreatedBy").Preload("CreatedBy.PersonalInfo").Preload("School")
	if loadMembers {
		query = query.Preload("Members").Preload("Members.User").
			Preload("Members.User.PersonalInfo").Preload("Members.User.Role")
	}

	result := query.First(&class, "id = ?", classId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return class, ErrClassNotFound
		}
		slog.Error("sql error in get class", "class_id", classId, "error", result.Error)
		return class, ErrDbAccessFailed
	}

	return class, nil
}

func GetUserClass(userId, classId uuid.UUID, db *gorm.DB) (UserClass, error) {
	var membership UserClass

	result := db.First(&membership, "user_id = ? and class_id = ?", userId, classId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return membership, ErrUserClassNotFound
		}
		slog.Error("sql error in get user class", "user_id", userId, "class_id", classId, "error", result.Error)
		return membership, ErrDbAccessFailed
	}

	return membership, nil
}

func GetDomain(domainId uuid.UUID, db *gorm.DB) (Domain, error) {
	var domain Domain

	result := db.First(&domain, "id = ?", domainId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain, ErrDomainNotFound
		}
		slog.Error("sql error in get domain", "domain_id", domainId, "error", result.Error)
		return domain, ErrDbAccessFailed
	}

	return domain, nil
}

func GetTheme(themeId uuid.UUID, db *gorm.DB) (Theme, error) {
	var theme Theme

	result := db.Preload("Domain").First(&theme, "id = ?", themeId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return theme, ErrThemeNotFound
		}
		slog.Error("sql error in get theme", "theme_id", themeId, "error", result.Error)
		return theme, ErrDbAccessFailed
	}

	return theme, nil
}

func GetActivity(activityId uuid.UUID, db *gorm.DB) (Activity, error) {
	var activity Activity

	result := db.Preload("Theme").Preload("Theme.Domain").First(&activity, "id = ?", activityId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return activity, ErrActivityNotFound
		}
		slog.Error("sql error in get activity", "activity_id", activityId, "error", result.Error)
		return activity, ErrDbAccessFailed
	}

	return activity, nil
}
