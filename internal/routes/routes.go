package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"healthbridge/internal/handlers"
)

// Handlers groups everything RegisterRoutes wires up.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Chat    *handlers.ChatHandler
	RAG     *handlers.RAGHandler
	Profile *handlers.ProfileHandler
	Status  *handlers.StatusHandler
	Ingest  *handlers.IngestHandler

	// AuthMiddleware guards every route that needs a caller identity.
	AuthMiddleware func(http.Handler) http.Handler
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(router *mux.Router, h *Handlers) {
	// Public endpoints
	router.HandleFunc("/", h.Status.Home).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Status.Health).Methods(http.MethodGet)
	router.HandleFunc("/status", h.Status.Status).Methods(http.MethodGet)
	router.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)

	// Authenticated endpoints
	protected := router.NewRoute().Subrouter()
	protected.Use(h.AuthMiddleware)

	protected.HandleFunc("/ai/chat", h.Chat.Chat).Methods(http.MethodPost)
	protected.HandleFunc("/analyze-query", h.Chat.AnalyzeQuery).Methods(http.MethodPost)
	protected.HandleFunc("/rag/query", h.RAG.Query).Methods(http.MethodPost)
	protected.HandleFunc("/user/profile", h.Profile.SetProfile).Methods(http.MethodPost)
	protected.HandleFunc("/user/profile", h.Profile.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/user/conversations", h.Profile.Conversations).Methods(http.MethodGet)
	protected.HandleFunc("/admin/ingest", h.Ingest.Ingest).Methods(http.MethodPost)
}
