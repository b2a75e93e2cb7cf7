package routes

import (
	"errors"
	"net/http"

	"nebula/nebula/controllers"
	"nebula/nebula/middlewares"
	httputils "nebula/nebula/utils/http"
	"nebula/nebula/utils/types"

	"github.com/go-chi/chi/v5"
)

func UserRoutes(ctrl *controllers.UserController, auth *middlewares.Authenticator, secure bool) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(auth))

	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		user, err := ctrl.GetUser(r.Context(), identity(r).UserID)
		if errors.Is(err, controllers.ErrUserNotFound) {
			return nil, http.StatusNotFound, err
		}
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return types.UserResponse{User: user}, http.StatusOK, nil
	}))

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		setTokenCookie(w, auth.CookieName(), "", -1, secure)
		httputils.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	})

	return r
}
