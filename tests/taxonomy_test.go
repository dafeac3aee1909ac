package tests

import (
	"errors"
	"fmt"
	"ludora/schema"
	"testing"

	"github.com/google/uuid"
)

type namedResult struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func TestRoleEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	parent := env.newUser(t, "parent1", schema.RoleParent, nil)

	var list struct {
		Roles []struct {
			Id        uuid.UUID `json:"id"`
			Name      string    `json:"name"`
			UserCount int64     `json:"userCount"`
		} `json:"roles"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	err := parent.Get("/api/roles").Do(&list)
	if err != nil {
		t.Fatal(err)
	}
	if list.Pagination.Total != 5 {
		t.Fatalf("expected the 5 seeded roles, got %d", list.Pagination.Total)
	}
	for _, role := range list.Roles {
		if role.Name == "parent" && role.UserCount != 1 {
			t.Fatalf("expected 1 parent user, got %d", role.UserCount)
		}
	}

	// The role set is closed; arbitrary names are rejected.
	err = admin.Post("/api/roles").Json(map[string]string{"name": "wizard"}).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown role name should be rejected: %v", err)
	}

	err = admin.Post("/api/roles").Json(map[string]string{"name": "teacher"}).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("duplicate role should conflict: %v", err)
	}
}

func TestRoleWritesAdminOnly(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	teacher := env.newUser(t, "teacher1", schema.RoleTeacher, nil)

	// Free a known name so a create could actually succeed past the enum check.
	childRole := env.roleId(t, schema.RoleChild)
	err := admin.Delete(fmt.Sprintf("/api/roles/%v", childRole)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	err = teacher.Post("/api/roles").Json(map[string]string{"name": "child"}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("teacher creating a role should be forbidden: %v", err)
	}

	parentRole := env.roleId(t, schema.RoleParent)
	err = teacher.Put(fmt.Sprintf("/api/roles/%v", parentRole)).Json(map[string]string{"name": "child"}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("teacher renaming a role should be forbidden: %v", err)
	}

	err = admin.Post("/api/roles").Json(map[string]string{"name": "child"}).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestRoleDeleteGuard(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	env.newUser(t, "teacher1", schema.RoleTeacher, nil)

	teacherRole := env.roleId(t, schema.RoleTeacher)

	err := admin.Delete(fmt.Sprintf("/api/roles/%v", teacherRole)).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("role with users should not be deletable: %v", err)
	}

	// A role with no users can go.
	childRole := env.roleId(t, schema.RoleChild)
	err = admin.Delete(fmt.Sprintf("/api/roles/%v", childRole)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestTaxonomyCrud(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	teacher := env.newUser(t, "teacher1", schema.RoleTeacher, nil)
	parent := env.newUser(t, "parent1", schema.RoleParent, nil)

	var domain struct {
		Domain namedResult `json:"domain"`
	}
	err := teacher.Post("/api/domains").Json(map[string]string{"name": "Mathematiques"}).Do(&domain)
	if err != nil {
		t.Fatal(err)
	}

	err = parent.Post("/api/domains").Json(map[string]string{"name": "Parental"}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("parent should not create domains: %v", err)
	}

	var theme struct {
		Theme namedResult `json:"theme"`
	}
	err = teacher.Post("/api/themes").Json(map[string]interface{}{
		"name":     "Geometrie",
		"domainId": domain.Domain.Id,
	}).Do(&theme)
	if err != nil {
		t.Fatal(err)
	}

	var activity struct {
		Activity namedResult `json:"activity"`
	}
	err = teacher.Post("/api/activities").Json(map[string]interface{}{
		"name":    "Symetrie axiale",
		"themeId": theme.Theme.Id,
	}).Do(&activity)
	if err != nil {
		t.Fatal(err)
	}

	// An activity needs an existing theme.
	err = teacher.Post("/api/activities").Json(map[string]interface{}{
		"name":    "Orphan",
		"themeId": uuid.New(),
	}).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("activity with unknown theme should fail: %v", err)
	}

	// Reads are open to everyone authenticated; themes come back embedded.
	var fetched struct {
		Domain struct {
			Id     uuid.UUID     `json:"id"`
			Themes []namedResult `json:"themes"`
		} `json:"domain"`
	}
	err = parent.Get(fmt.Sprintf("/api/domains/%v", domain.Domain.Id)).Do(&fetched)
	if err != nil {
		t.Fatal(err)
	}
	if len(fetched.Domain.Themes) != 1 || fetched.Domain.Themes[0].Id != theme.Theme.Id {
		t.Fatalf("themes not embedded in domain: %+v", fetched.Domain)
	}

	err = admin.Delete(fmt.Sprintf("/api/activities/%v", activity.Activity.Id)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
}

// Theme and activity lists filter by the related entity's name, matched as a
// case-insensitive substring.
func TestTaxonomyNameFilters(t *testing.T) {
	env := setupTestEnv(t)

	teacher := env.newUser(t, "teacher1", schema.RoleTeacher, nil)

	taxonomy := map[string]map[string][]string{
		"Mathematiques": {"Geometrie": {"Symetrie axiale", "Figures planes"}},
		"Francais":      {"Lecture": {"Comprehension de texte"}},
	}
	for domainName, themes := range taxonomy {
		var domain struct {
			Domain namedResult `json:"domain"`
		}
		err := teacher.Post("/api/domains").Json(map[string]string{"name": domainName}).Do(&domain)
		if err != nil {
			t.Fatal(err)
		}
		for themeName, activities := range themes {
			var theme struct {
				Theme namedResult `json:"theme"`
			}
			err = teacher.Post("/api/themes").Json(map[string]interface{}{
				"name":     themeName,
				"domainId": domain.Domain.Id,
			}).Do(&theme)
			if err != nil {
				t.Fatal(err)
			}
			for _, activityName := range activities {
				err = teacher.Post("/api/activities").Json(map[string]interface{}{
					"name":    activityName,
					"themeId": theme.Theme.Id,
				}).Do(nil)
				if err != nil {
					t.Fatal(err)
				}
			}
		}
	}

	var themes struct {
		Themes []struct {
			Name          string `json:"name"`
			ActivityCount int64  `json:"activityCount"`
		} `json:"themes"`
	}
	err := teacher.Get("/api/themes?domain=math").Do(&themes)
	if err != nil {
		t.Fatal(err)
	}
	if len(themes.Themes) != 1 || themes.Themes[0].Name != "Geometrie" {
		t.Fatalf("expected only the Mathematiques theme, got %+v", themes.Themes)
	}
	if themes.Themes[0].ActivityCount != 2 {
		t.Fatalf("expected 2 activities on Geometrie, got %d", themes.Themes[0].ActivityCount)
	}

	var activities struct {
		Activities []namedResult `json:"activities"`
	}
	err = teacher.Get("/api/activities?theme=LECTURE").Do(&activities)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities.Activities) != 1 || activities.Activities[0].Name != "Comprehension de texte" {
		t.Fatalf("expected only the Lecture activity, got %+v", activities.Activities)
	}

	// A non-matching name yields an empty page, not an error.
	err = teacher.Get("/api/themes?domain=histoire").Do(&themes)
	if err != nil {
		t.Fatal(err)
	}
	if len(themes.Themes) != 0 {
		t.Fatalf("expected no themes for unmatched domain, got %+v", themes.Themes)
	}
}

func TestTaxonomyDeleteGuards(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	teacher := env.newUser(t, "teacher1", schema.RoleTeacher, nil)

	var domain struct {
		Domain namedResult `json:"domain"`
	}
	err := teacher.Post("/api/domains").Json(map[string]string{"name": "Francais"}).Do(&domain)
	if err != nil {
		t.Fatal(err)
	}

	var theme struct {
		Theme namedResult `json:"theme"`
	}
	err = teacher.Post("/api/themes").Json(map[string]interface{}{
		"name":     "Lecture",
		"domainId": domain.Domain.Id,
	}).Do(&theme)
	if err != nil {
		t.Fatal(err)
	}

	var activity struct {
		Activity namedResult `json:"activity"`
	}
	err = teacher.Post("/api/activities").Json(map[string]interface{}{
		"name":    "Comprehension de texte",
		"themeId": theme.Theme.Id,
	}).Do(&activity)
	if err != nil {
		t.Fatal(err)
	}

	// Deletes are blocked bottom-up while dependents exist.
	err = admin.Delete(fmt.Sprintf("/api/domains/%v", domain.Domain.Id)).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("domain with themes should not be deletable: %v", err)
	}
	err = admin.Delete(fmt.Sprintf("/api/themes/%v", theme.Theme.Id)).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("theme with activities should not be deletable: %v", err)
	}

	// Teachers cannot delete taxonomy records at all.
	err = teacher.Delete(fmt.Sprintf("/api/activities/%v", activity.Activity.Id)).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("teacher delete should be forbidden: %v", err)
	}

	// Removing the leaves unblocks the chain.
	err = admin.Delete(fmt.Sprintf("/api/activities/%v", activity.Activity.Id)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
	err = admin.Delete(fmt.Sprintf("/api/themes/%v", theme.Theme.Id)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
	err = admin.Delete(fmt.Sprintf("/api/domains/%v", domain.Domain.Id)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
}
