package routes

import (
	"net/http"

	"nebula/nebula/controllers"
	"nebula/nebula/middlewares"
	httputils "nebula/nebula/utils/http"
	"nebula/nebula/utils/logging"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SocketRoutes authenticates the handshake before upgrading; an anonymous
// client gets a plain 401 and never a socket.
func SocketRoutes(ctrl *controllers.SocketController, auth *middlewares.Authenticator, originPatterns []string) chi.Router {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.Authenticate(r.Context(), r.Header)
		if err != nil {
			logging.AppLogger.Info("rejected socket handshake", zap.Error(err))
			httputils.RespondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logging.AppLogger.Info("socket upgrade failed", zap.Int("user_id", id.UserID), zap.Error(err))
			return
		}
		ctrl.Serve(r.Context(), conn, id)
	})
	return r
}
