// ABOUTME: Declarative route table for API endpoints
// ABOUTME: Defines all routes with method, path, and auth requirement

package handlers

import "net/http"

// Route defines an API endpoint with its HTTP method and handler.
type Route struct {
	Method  string           // HTTP method (GET, POST, etc.)
	Path    string           // URL path (e.g., "/incidents")
	Handler http.HandlerFunc // Handler function
	Auth    bool             // Requires a valid session token
}

// Routes returns all API routes for registration.
func (h *Handler) Routes() []Route {
	return []Route{
		// Health & docs
		{Method: http.MethodGet, Path: "/healthz", Handler: h.Health},
		{Method: http.MethodGet, Path: "/openapi.yaml", Handler: h.OpenAPISpec},

		// Auth
		{Method: http.MethodPost, Path: "/login", Handler: h.Login},
		{Method: http.MethodPost, Path: "/logout", Handler: h.Logout},
		{Method: http.MethodGet, Path: "/me", Handler: h.Me, Auth: true},

		// Work item lists
		{Method: http.MethodGet, Path: "/incidents", Handler: h.ListIncidents, Auth: true},
		{Method: http.MethodGet, Path: "/tasks", Handler: h.ListTasks, Auth: true},
		{Method: http.MethodGet, Path: "/approvals", Handler: h.ListApprovals, Auth: true},

		// Work item detail
		{Method: http.MethodGet, Path: "/record/{table}/{id}", Handler: h.GetRecord, Auth: true},
		{Method: http.MethodPatch, Path: "/record/{table}/{id}", Handler: h.UpdateRecord, Auth: true},
		{Method: http.MethodGet, Path: "/record/{table}/{id}/activity", Handler: h.Activity, Auth: true},

		// Typeahead search
		{Method: http.MethodGet, Path: "/search/users", Handler: h.SearchUsers, Auth: true},
		{Method: http.MethodGet, Path: "/search/groups", Handler: h.SearchGroups, Auth: true},

		// Approvals
		{Method: http.MethodGet, Path: "/approval/{id}", Handler: h.ApprovalDetail, Auth: true},
		{Method: http.MethodPost, Path: "/approval/{id}/decide", Handler: h.DecideApproval, Auth: true},
	}
}
