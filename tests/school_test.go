package tests

import (
	"errors"
	"fmt"
	"ludora/schema"
	"testing"

	"github.com/google/uuid"
)

type schoolResult struct {
	Message string `json:"message"`
	School  struct {
		Id      uuid.UUID `json:"id"`
		Name    string    `json:"name"`
		City    string    `json:"city"`
		ZipCode string    `json:"zipCode"`
	} `json:"school"`
}

type schoolListResult struct {
	Schools []struct {
		Id   uuid.UUID `json:"id"`
		Name string    `json:"name"`
		City string    `json:"city"`
	} `json:"schools"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func TestSchoolCrud(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	parent := env.newUser(t, "parent1", schema.RoleParent, nil)

	var created schoolResult
	err := admin.Post("/api/schools").Json(map[string]string{
		"name":    "Crud School",
		"city":    "Bordeaux",
		"zipCode": "33000",
	}).Do(&created)
	if err != nil {
		t.Fatal(err)
	}

	// Writes are role gated, reads are open to any authenticated user.
	err = parent.Post("/api/schools").Json(map[string]string{"name": "Parent School"}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("parent should not create schools: %v", err)
	}

	var fetched schoolResult
	err = parent.Get(fmt.Sprintf("/api/schools/%v", created.School.Id)).Do(&fetched)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.School.Name != "Crud School" || fetched.School.City != "Bordeaux" {
		t.Fatalf("unexpected school: %+v", fetched.School)
	}

	err = admin.Post("/api/schools").Json(map[string]string{"name": "Crud School"}).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("duplicate school name should conflict: %v", err)
	}

	var updated schoolResult
	err = admin.Put(fmt.Sprintf("/api/schools/%v", created.School.Id)).Json(map[string]string{"zipCode": "33100"}).Do(&updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.School.ZipCode != "33100" || updated.School.Name != "Crud School" {
		t.Fatalf("partial update wrong: %+v", updated.School)
	}

	err = admin.Delete(fmt.Sprintf("/api/schools/%v", created.School.Id)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	err = parent.Get(fmt.Sprintf("/api/schools/%v", created.School.Id)).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted school should be gone: %v", err)
	}
}

func TestSchoolCityFilter(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)

	for _, school := range []map[string]string{
		{"name": "Lyon School 1", "city": "Lyon"},
		{"name": "Lyon School 2", "city": "Lyon"},
		{"name": "Paris School", "city": "Paris"},
	} {
		if err := admin.Post("/api/schools").Json(school).Do(nil); err != nil {
			t.Fatal(err)
		}
	}

	var res schoolListResult
	err := admin.Get("/api/schools?city=lyon").Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pagination.Total != 2 {
		t.Fatalf("expected 2 schools in lyon, got %d", res.Pagination.Total)
	}
}

func TestDirectorUpdatesOwnSchoolOnly(t *testing.T) {
	env := setupTestEnv(t)

	ownSchool := env.createSchool(t, "Own School")
	otherSchool := env.createSchool(t, "Other School")

	director := env.newUser(t, "director1", schema.RoleDirector, &ownSchool)

	err := director.Put(fmt.Sprintf("/api/schools/%v", ownSchool)).Json(map[string]string{"city": "Nice"}).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	err = director.Put(fmt.Sprintf("/api/schools/%v", otherSchool)).Json(map[string]string{"city": "Nice"}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("director updating another school should be forbidden: %v", err)
	}

	err = director.Delete(fmt.Sprintf("/api/schools/%v", ownSchool)).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("director should not delete schools: %v", err)
	}
}

func TestSchoolDeleteGuard(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	schoolId := env.createSchool(t, "Guarded School")
	env.newUser(t, "teacher1", schema.RoleTeacher, &schoolId)

	err := admin.Delete(fmt.Sprintf("/api/schools/%v", schoolId)).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("school with users should not be deletable: %v", err)
	}

	// Record is intact.
	err = admin.Get(fmt.Sprintf("/api/schools/%v", schoolId)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
}
