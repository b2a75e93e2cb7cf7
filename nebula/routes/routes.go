package routes

import (
	"net/http"

	"nebula/nebula/middlewares"
	httputils "nebula/nebula/utils/http"
	"nebula/nebula/utils/logging"

	"go.uber.org/zap"
)

// handleJSON turns a (payload, status, error) handler into an http.HandlerFunc.
// Errors with a 5xx status are logged and never echoed to the client.
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			if status >= http.StatusInternalServerError {
				logging.ErrorLogger.Error("request failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				httputils.RespondError(w, status, http.StatusText(status))
				return
			}
			httputils.RespondError(w, status, err.Error())
			return
		}
		httputils.RespondJSON(w, status, res)
	}
}

// identity is only called behind AuthMiddleware.
func identity(r *http.Request) middlewares.Identity {
	id, _ := middlewares.IdentityFromContext(r.Context())
	return id
}

func setTokenCookie(w http.ResponseWriter, name, value string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
