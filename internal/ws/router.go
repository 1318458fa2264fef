package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"chessmatch/internal/middleware"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger *slog.Logger
	Server *Server
}

// NewRouter creates the HTTP router: the websocket endpoint plus a health
// check. Everything else the application does happens over the socket.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger, middleware.DefaultPanicHandler))
	r.Use(middleware.Logging(cfg.Logger))

	r.HandleFunc("/ws", cfg.Server.HandleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
