package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
)

// Accounts known to FakeAPI. Any password but WrongPassword signs them in.
const (
	AdminEmail    = "a@b.com"
	AdminToken    = "abc"
	UserEmail     = "u@b.com"
	UserToken     = "xyz"
	WrongPassword = "wrong"
)

// FakeAPI plays the remote Learn & Earn API.
type FakeAPI struct {
	mu sync.Mutex

	Assignments []earn.Assignment
	Users       []earn.User
	Payments    []earn.Payment
	Submissions []earn.Submission

	AcceptErr    string // rejects every accept with this message
	Unauthorized bool   // answers 401 to every authenticated call

	assignmentFetches int
	created           map[string]string
}

// NewFakeAPI starts the fake and returns it with the base URL to hand to the client.
// It starts with a single assignment, a1.
func NewFakeAPI(t *testing.T) (*FakeAPI, string) {
	t.Helper()
	f := &FakeAPI{Assignments: []earn.Assignment{{ID: "a1", Title: "Algebra revision", Price: "300"}}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv.URL + "/api"
}

// NewStubServer answers every request with code and an empty body.
func NewStubServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// Set mutates the fake between requests.
func (f *FakeAPI) Set(fn func(f *FakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// Fetches counts the assignment listings served so far.
func (f *FakeAPI) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assignmentFetches
}

// CreatedFields returns the form values of the last assignment created, nil if none was.
func (f *FakeAPI) CreatedFields() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api")
	if path == "/auth/signin" {
		f.signIn(w, r)
		return
	}

	if f.Unauthorized || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "jwt expired"})
		return
	}

	switch {
	case path == "/earn/me":
		writeJSON(w, http.StatusOK, map[string]interface{}{"balance": 120, "referrals": map[string]int{"count": 2, "points": 10}})
	case path == "/earn/assignments" || path == "/earn/assignments/all":
		f.assignmentFetches++
		writeJSON(w, http.StatusOK, f.Assignments)
	case strings.HasSuffix(path, "/accept"):
		if f.AcceptErr != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": f.AcceptErr})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Accepted!"})
	case path == "/earn/assignments/create":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		f.created = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f.created[k] = v[0]
		}
		for k := range r.MultipartForm.File {
			f.created[k] = r.MultipartForm.File[k][0].Filename
		}
		a := earn.Assignment{ID: core.ID("new"), Title: f.created["title"], Description: f.created["description"]}
		f.Assignments = append(f.Assignments, a)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"assignment": a})
	case path == "/admin/users":
		writeJSON(w, http.StatusOK, f.Users)
	case strings.HasPrefix(path, "/admin/users/"):
		writeJSON(w, http.StatusOK, map[string]string{"message": "User updated"})
	case path == "/admin/payments":
		writeJSON(w, http.StatusOK, f.Payments)
	case path == "/earn/submissions/all":
		writeJSON(w, http.StatusOK, f.Submissions)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeAPI) signIn(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body["password"] == WrongPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	switch body["email"] {
	case AdminEmail:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": AdminToken,
			"user":  map[string]interface{}{"id": 1, "email": AdminEmail, "role": "admin"},
		})
	case UserEmail:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": UserToken,
			"user":  map[string]interface{}{"id": 2, "name": "Otieno", "email": UserEmail},
		})
	default:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}
}
