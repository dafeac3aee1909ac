package tests

import (
	"errors"
	"fmt"
	"ludora/schema"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.register(name, email, password, env.roleId(t, schema.RoleTeacher), nil)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.register(name, email, password, env.roleId(t, schema.RoleTeacher), nil)
		if err == nil {
			t.Fatal("duplicate registration should fail")
		}

		err = client.login(loginInfo{Email: "nobody@mail.com", Password: password})
		if err == nil {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: email, Password: "wrong_password"})
		if err == nil {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	_, err := client.register("abc", "abc@mail.com", "short", env.roleId(t, schema.RoleTeacher), nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("password below minimum length should be rejected: %v", err)
	}

	_, err = client.register("abc", "not-an-email", "long_enough", env.roleId(t, schema.RoleTeacher), nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("malformed email should be rejected: %v", err)
	}

	err = client.Post("/api/auth/register").Json(map[string]interface{}{
		"password": "long_enough",
		"roleId":   env.roleId(t, schema.RoleTeacher),
		"personalInfo": map[string]string{
			"name":  "abc",
			"email": "abc@mail.com",
		},
	}).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing firstName should be rejected: %v", err)
	}
}

func TestRegisterUnknownRole(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	err := client.Post("/api/auth/register").Json(map[string]interface{}{
		"password": "long_enough",
		"roleId":   "6a6f3a39-5b4d-4dbb-8f6e-000000000000",
		"personalInfo": map[string]string{
			"name":      "abc",
			"firstName": "abc",
			"email":     "abc@mail.com",
		},
	}).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("registration with unknown role should fail: %v", err)
	}
}

func TestDuplicateEmailLeavesNoPartialState(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()
	_, err := client.register("dup", "dup@mail.com", "dup_password", env.roleId(t, schema.RoleParent), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.register("dup2", "dup@mail.com", "dup2_password", env.roleId(t, schema.RoleParent), nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("second registration with same email should conflict: %v", err)
	}

	var userCount int64
	err = env.db.Model(&schema.PersonalInfo{}).Where("email = ?", "dup@mail.com").Count(&userCount).Error
	if err != nil {
		t.Fatal(err)
	}
	if userCount != 1 {
		t.Fatalf("expected exactly one record for email, got %d", userCount)
	}
}

// Unknown email and wrong password must be indistinguishable on the wire.
func TestInvalidCredentialsAreUniform(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()
	_, err := client.register("alice", "alice@mail.com", "alice_password", env.roleId(t, schema.RoleTeacher), nil)
	if err != nil {
		t.Fatal(err)
	}

	statusA, bodyA, err := client.Post("/api/auth/login").Json(loginInfo{Email: "alice@mail.com", Password: "wrong"}).Raw()
	if err != nil {
		t.Fatal(err)
	}
	statusB, bodyB, err := client.Post("/api/auth/login").Json(loginInfo{Email: "ghost@mail.com", Password: "whatever"}).Raw()
	if err != nil {
		t.Fatal(err)
	}

	if statusA != 401 || statusB != 401 {
		t.Fatalf("expected 401 for both login failures, got %d and %d", statusA, statusB)
	}
	if bodyA != bodyB {
		t.Fatalf("login failure responses differ: '%v' vs '%v'", bodyA, bodyB)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	err := client.Get("/api/users").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("request without token should be unauthorized: %v", err)
	}

	err = client.Get("/api/schools").Auth("not.a.token").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("request with garbage token should be unauthorized: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	var res map[string]interface{}
	err := client.Get("/health").Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if res["status"] != "OK" {
		t.Fatalf("unexpected health response: %v", res)
	}
	if _, ok := res["timestamp"]; !ok {
		t.Fatal("health response missing timestamp")
	}
}
