package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kharcha/internal/auth"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	hasher := auth.NewHasher(bcrypt.MinCost)
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	authSvc := services.NewAuthService(repo, hasher, tokens)
	entrySvc := services.NewEntryService(repo, 5, 100)

	srv := NewServer(":0", authSvc, entrySvc, tokens, repo)
	t.Cleanup(func() {
		srv.rateLimiter.stop()
		repo.Close()
	})
	return srv
}

// do sends a JSON request through the server's mux and records the response.
func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// signupAndLogin registers a user and returns a valid bearer token.
func signupAndLogin(t *testing.T, srv *Server, email, mobile string) string {
	t.Helper()

	rr := do(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Test User", "email": email, "mobile": mobile, "password": "s3cret",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": email, "password": "s3cret",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("login returned empty token")
	}
	return resp.Token
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestSignup(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Asha", "email": "asha@example.com", "mobile": "9876543210", "password": "s3cret",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Signup successful") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	// Colliding email, colliding mobile: both are rejected with 400.
	for _, body := range []map[string]string{
		{"name": "B", "email": "asha@example.com", "mobile": "1112223334", "password": "pw"},
		{"name": "C", "email": "other@example.com", "mobile": "9876543210", "password": "pw"},
	} {
		rr := do(t, srv, http.MethodPost, "/api/auth/signup", "", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("duplicate signup status = %d, body %s", rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), "already exists") {
			t.Fatalf("unexpected duplicate body: %s", rr.Body.String())
		}
	}
}

func TestSignupValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "missing name", body: map[string]string{"email": "a@b.com", "mobile": "9876543210", "password": "pw"}},
		{name: "bad email", body: map[string]string{"name": "A", "email": "nope", "mobile": "9876543210", "password": "pw"}},
		{name: "bad mobile", body: map[string]string{"name": "A", "email": "a@b.com", "mobile": "12", "password": "pw"}},
		{name: "missing password", body: map[string]string{"name": "A", "email": "a@b.com", "mobile": "9876543210"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/auth/signup", "", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": strings.Repeat("x", 2<<20), "email": "a@b.com", "mobile": "9876543210", "password": "pw",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	signupAndLogin(t, srv, "asha@example.com", "9876543210")

	// Mobile works as identifier too.
	rr := do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "9876543210", "password": "s3cret",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login by mobile status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	decodeBody(t, rr, &resp)
	if resp.User.Name != "Test User" || resp.User.ID == 0 {
		t.Fatalf("unexpected login payload: %+v", resp)
	}
}

func TestLoginFailuresShareOneShape(t *testing.T) {
	srv := newTestServer(t)
	signupAndLogin(t, srv, "asha@example.com", "9876543210")

	wrongPass := do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "asha@example.com", "password": "wrong",
	})
	unknownUser := do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "ghost@example.com", "password": "wrong",
	})

	if wrongPass.Code != http.StatusBadRequest || unknownUser.Code != http.StatusBadRequest {
		t.Fatalf("statuses = %d, %d; want 400, 400", wrongPass.Code, unknownUser.Code)
	}
	// The two failures must be byte-identical so the response never reveals
	// whether the identifier exists.
	if wrongPass.Body.String() != unknownUser.Body.String() {
		t.Fatalf("failure bodies differ: %q vs %q", wrongPass.Body.String(), unknownUser.Body.String())
	}
}

func TestAuthRateLimit(t *testing.T) {
	srv := newTestServer(t)

	// Hammer login from one IP; the limiter must kick in with 429.
	var last int
	for i := 0; i < 40; i++ {
		rr := do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
			"identifier": "ghost@example.com", "password": "pw",
		})
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status after hammering = %d, want 429", last)
	}
}
