package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"bridge-settle.backend/internal/interfaces/http/handlers"
)

func TestRegisterRoutes_RegistersExpectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	registerRoutes(r, routeDeps{
		adminHandler: handlers.NewAdminHandler(nil, nil, nil),
		authMiddleware: func(c *gin.Context) {
			c.Next()
		},
	})

	routes := r.Routes()
	expects := []struct {
		method string
		path   string
	}{
		{"GET", "/healthz"},
		{"GET", "/metrics"},
		{"GET", "/admin/bridge-transactions"},
		{"GET", "/admin/bridge-transactions/:id"},
		{"POST", "/admin/sweep/source"},
		{"POST", "/admin/sweep/dest"},
	}

	for _, exp := range expects {
		found := false
		for _, route := range routes {
			if route.Method == exp.method && route.Path == exp.path {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("route %s %s not registered", exp.method, exp.path)
		}
	}
}

func TestRegisterRoutes_HealthzRespondsWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	registerRoutes(r, routeDeps{
		adminHandler: handlers.NewAdminHandler(nil, nil, nil),
		authMiddleware: func(c *gin.Context) {
			c.AbortWithStatus(http.StatusUnauthorized)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unauthenticated healthz, got %d", rec.Code)
	}
}

func TestRegisterRoutes_AdminRoutesRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	registerRoutes(r, routeDeps{
		adminHandler: handlers.NewAdminHandler(nil, nil, nil),
		authMiddleware: func(c *gin.Context) {
			c.AbortWithStatus(http.StatusUnauthorized)
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/sweep/source", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated admin route, got %d", rec.Code)
	}
}
