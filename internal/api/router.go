package api

import (
	"database/sql"
	"net/http"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	requisitionsHandler := &RequisitionsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	admin := func(h http.HandlerFunc) http.Handler { return authMW(RequireAdmin(h)) }
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated session management.
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Items: read (all roles), write (admin).
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", admin(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", admin(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", admin(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/adjust", admin(itemsHandler.Adjust))
	mux.Handle("PUT /api/items/{id}/photo", admin(itemsHandler.UploadPhoto))
	mux.Handle("GET /api/items/{id}/photo", authed(itemsHandler.GetPhoto))

	// Requisitions: creation, own history, and cancellation for all roles;
	// decisions and the unscoped listing for admins.
	mux.Handle("POST /api/requisitions", authed(requisitionsHandler.Create))
	mux.Handle("GET /api/requisitions", authed(requisitionsHandler.ListMine))
	mux.Handle("GET /api/requisitions/stats", authed(requisitionsHandler.Stats))
	mux.Handle("GET /api/requisitions/all", admin(requisitionsHandler.ListAll))
	mux.Handle("GET /api/requisitions/{id}", authed(requisitionsHandler.Get))
	mux.Handle("PATCH /api/requisitions/{id}/approve", admin(requisitionsHandler.Approve))
	mux.Handle("PATCH /api/requisitions/{id}/reject", admin(requisitionsHandler.Reject))
	mux.Handle("PATCH /api/requisitions/{id}/fulfill", admin(requisitionsHandler.Fulfill))
	mux.Handle("PATCH /api/requisitions/{id}/cancel", authed(requisitionsHandler.Cancel))

	return mux
}
