package handler

import (
	"net/http"

	"github.com/aryan0dhankhar/insightdash/internal/security"
)

// UploadPath is the only route that accepts multipart bodies
const UploadPath = "/api/data-sources/upload"

// Mountable is a handler that registers its own routes under a path
type Mountable interface {
	Register(mux *http.ServeMux, path string, gate Gate)
}

// Router lists the handlers of the API. Nil handlers are not mounted.
type Router struct {
	// Session requires a live session without checking a permission
	Session       func(http.Handler) http.Handler
	Gate          Gate
	LoginLimit    func(http.Handler) http.Handler
	RegisterLimit func(http.Handler) http.Handler

	Auth      *AuthHandler
	Admin     *AdminHandler
	Dashboard *DashboardHandler
	Upload    *UploadHandler
	Messages  *MessagesHandler
	Health    *HealthHandler
	Schema    *SchemaHandler
	Live      *LiveHandler
	Resources map[string]Mountable
}

// Mount registers every route on mux
func (rt *Router) Mount(mux *http.ServeMux) {
	loginLimit, registerLimit := orPass(rt.LoginLimit), orPass(rt.RegisterLimit)
	gated := func(perm security.Permission, fn http.HandlerFunc) http.Handler {
		return rt.Gate(perm, fn)
	}

	if rt.Health != nil {
		mux.HandleFunc("GET /healthz", rt.Health.Health)
		mux.HandleFunc("GET /readyz", rt.Health.Ready)
	}
	if rt.Schema != nil {
		mux.Handle("GET /api/schema", rt.Schema)
	}

	if rt.Auth != nil {
		mux.Handle("POST /api/auth/register", registerLimit(http.HandlerFunc(rt.Auth.Register)))
		mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(rt.Auth.Login)))
		mux.Handle("POST /api/auth/logout", rt.Session(http.HandlerFunc(rt.Auth.Logout)))
		mux.Handle("GET /api/auth/user", rt.Session(http.HandlerFunc(rt.Auth.User)))
		mux.Handle("POST /api/auth/change-password", rt.Session(http.HandlerFunc(rt.Auth.ChangePassword)))
	}

	if rt.Dashboard != nil {
		mux.Handle("GET /api/dashboard/metrics", gated(security.PermViewDashboard, rt.Dashboard.Metrics))
		mux.Handle("GET /api/dashboard/portfolio-performance", gated(security.PermViewDashboard, rt.Dashboard.PortfolioPerformance))
		mux.Handle("GET /api/dashboard/sector-allocation", gated(security.PermViewDashboard, rt.Dashboard.SectorAllocation))
		mux.Handle("GET /api/dashboard/top-performers", gated(security.PermViewDashboard, rt.Dashboard.TopPerformers))
	}
	if rt.Live != nil {
		mux.Handle("GET /ws/dashboard", rt.Gate(security.PermViewDashboard, rt.Live))
	}

	for path, h := range rt.Resources {
		h.Register(mux, path, rt.Gate)
	}
	if rt.Upload != nil {
		mux.Handle("POST "+UploadPath, rt.Gate(security.PermUploadData, rt.Upload))
	}
	if rt.Messages != nil {
		mux.Handle("POST /api/ai/conversations/{id}/messages", rt.Gate(security.PermUseAssistant, rt.Messages))
	}

	if rt.Admin != nil {
		mux.Handle("GET /api/admin/users", gated(security.PermManageUsers, rt.Admin.ListUsers))
		mux.Handle("DELETE /api/admin/users/{id}", gated(security.PermManageUsers, rt.Admin.DeactivateUser))
	}
}

func orPass(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return mw
}
