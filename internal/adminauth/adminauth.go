// Package adminauth gates the operator endpoints. Real authentication happens
// at the edge; by the time a request reaches this service the edge has stamped
// the verified staff identity and role onto headers.
package adminauth

import (
	"encoding/json"
	"net/http"
)

const (
	headerStaffID   = "X-Staff-ID"
	headerStaffRole = "X-Staff-Role"
	roleAdmin       = "admin"
)

// Middleware rejects requests that did not come through the edge with an
// admin role.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerStaffID) == "" || r.Header.Get(headerStaffRole) != roleAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "staff access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Actor returns the staff identity the edge attached to the request.
func Actor(r *http.Request) string {
	return r.Header.Get(headerStaffID)
}
