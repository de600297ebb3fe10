package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"reprosign/internal/app"
)

type handler struct {
	svc *app.Service
}

// NewHandler registers every endpoint on a fresh router. The returned
// handler is wrapped with CORS and request logging.
func NewHandler(svc *app.Service) http.Handler {
	h := handler{svc: svc}

	root := mux.NewRouter()
	v1 := root.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/build-jobs", h.submitBuildJob).Methods(http.MethodPost)
	v1.HandleFunc("/build-jobs/{id}", h.buildJobStatus).Methods(http.MethodGet)
	v1.HandleFunc("/build-jobs/{id}/results", h.buildJobResults).Methods(http.MethodGet)

	v1.HandleFunc("/signing-requests/{id}/authorize", h.authorize).Methods(http.MethodPost)
	v1.HandleFunc("/signing-requests/{id}/finalize", h.finalize).Methods(http.MethodPost)

	v1.HandleFunc("/keys", h.keyCeremony).Methods(http.MethodPost)
	v1.HandleFunc("/keys", h.listKeys).Methods(http.MethodGet)
	v1.HandleFunc("/keys/{id}", h.revokeKey).Methods(http.MethodDelete)

	v1.HandleFunc("/suspensions", h.suspend).Methods(http.MethodPost)
	v1.HandleFunc("/suspensions/{artifact}", h.lift).Methods(http.MethodDelete)
	v1.HandleFunc("/suspensions/{artifact}", h.suspensionHistory).Methods(http.MethodGet)

	v1.HandleFunc("/audit", h.auditRange).Methods(http.MethodGet)
	v1.HandleFunc("/audit/verify", h.auditVerify).Methods(http.MethodGet)

	root.HandleFunc("/v1/healthz", h.healthz).Methods(http.MethodGet)

	return cors.AllowAll().Handler(requestLogger(root))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}
