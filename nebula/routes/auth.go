package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"nebula/nebula/controllers"
	"nebula/nebula/middlewares"
	httputils "nebula/nebula/utils/http"
	"nebula/nebula/utils/logging"
	"nebula/nebula/utils/types"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthRoutes issues the session cookie. secure marks it HTTPS-only.
func AuthRoutes(ctrl *controllers.AuthController, auth *middlewares.Authenticator, secure bool) chi.Router {
	r := chi.NewRouter()

	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		token, user, err := ctrl.Login(r.Context(), req.Username)
		if errors.Is(err, controllers.ErrInvalidUsername) {
			httputils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			logging.ErrorLogger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
			httputils.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		setTokenCookie(w, auth.CookieName(), token, 0, secure)
		httputils.RespondJSON(w, http.StatusOK, types.LoginResponse{Token: token, User: user})
	})

	return r
}
