package autorouter

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

type testHandler struct {
	name string
}

func (h *testHandler) Create(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "Created by %s", h.name)
}

func (h *testHandler) Get(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Got data from %s", h.name)
}

func (h *testHandler) Fail(w http.ResponseWriter, r *http.Request) error {
	return errors.New("boom")
}

// skipped: manual handler
func (h *testHandler) HandleSomething(w http.ResponseWriter, r *http.Request) {}

// skipped: wrong signature
func (h *testHandler) Describe() string { return h.name }

func (h *testHandler) unexported(w http.ResponseWriter, r *http.Request) {}

func serve(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func newRouter(mux *http.ServeMux, opts RegistrationOptions) *AutoRouter {
	opts.Logger = logger.NewNop()
	return NewAutoRouter(mux, opts)
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()
	router := newRouter(mux, RegistrationOptions{Prefix: "/api/v1/", MethodPrefix: "test."})
	require.NoError(t, router.RegisterHandlers(&testHandler{name: "test"}))

	rec := serve(mux, "/api/v1/test.Create")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Created by test", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(mux, "/api/v1/test.HandleSomething").Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, "/api/v1/test.Describe").Code)

	var paths []string
	for _, r := range router.Routes() {
		paths = append(paths, r.URLPath)
		assert.False(t, r.Protected)
	}
	assert.Equal(t, []string{"/api/v1/test.Create", "/api/v1/test.Fail", "/api/v1/test.Get"}, paths)
}

func TestRegisterHandlers_ErrorResult(t *testing.T) {
	mux := http.NewServeMux()
	var got error
	router := newRouter(mux, RegistrationOptions{
		Prefix:       "/api/v1/",
		MethodPrefix: "test.",
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		},
	})
	require.NoError(t, router.RegisterHandlers(&testHandler{}))

	assert.Equal(t, http.StatusTeapot, serve(mux, "/api/v1/test.Fail").Code)
	assert.EqualError(t, got, "boom")
}

func TestRegisterHandlers_Rejects(t *testing.T) {
	router := newRouter(http.NewServeMux(), RegistrationOptions{Prefix: "/api/v1/", MethodPrefix: "test."})

	assert.Error(t, router.RegisterHandlers("not a struct"))
	assert.Error(t, router.RegisterHandlers(&struct{}{}))

	require.NoError(t, router.RegisterHandlers(&testHandler{}))
	assert.Error(t, router.RegisterHandlers(&testHandler{}), "duplicate paths must be rejected")
}

func TestRegisterHandlersWithAuth(t *testing.T) {
	mux := http.NewServeMux()
	var order []string
	authMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "auth")
			if r.Header.Get("Authorization") != "Bearer test-token" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	header := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "header")
			w.Header().Set("X-Test-Middleware", "applied")
			next.ServeHTTP(w, r)
		})
	}

	router := newRouter(mux, RegistrationOptions{Prefix: "/api/v1/", Middleware: []Middleware{header}})
	require.NoError(t, router.WithMethodPrefix("auth.").RegisterHandlersWithAuth(&testHandler{name: "auth"}, authMiddleware))

	assert.Equal(t, http.StatusUnauthorized, serve(mux, "/api/v1/auth.Get").Code)

	order = nil
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth.Get", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "applied", rec.Header().Get("X-Test-Middleware"))
	assert.Equal(t, []string{"auth", "header"}, order)

	for _, r := range router.Routes() {
		assert.True(t, r.Protected, r.URLPath)
	}
}

func TestRegisterSingleMethod(t *testing.T) {
	mux := http.NewServeMux()
	router := newRouter(mux, RegistrationOptions{Prefix: "/api/v1/"})

	require.NoError(t, router.RegisterSingleMethod(&testHandler{name: "single"}, "Get", "custom/path"))
	assert.Equal(t, "Got data from single", serve(mux, "/api/v1/custom/path").Body.String())

	assert.Error(t, router.RegisterSingleMethod(&testHandler{}, "Missing", "x"))
	assert.Error(t, router.RegisterSingleMethod(&testHandler{}, "Describe", "y"))
}

func TestQuickRegister(t *testing.T) {
	mux := http.NewServeMux()
	require.NoError(t, QuickRegister(mux, "/api/v1/", "", &testHandler{name: "quick"}))

	assert.Equal(t, "Got data from quick", serve(mux, "/api/v1/get").Body.String())
}
