// Route registration and go-chi router setup: public routes (/health,
// /auth/*, /mcp) and JWT-protected routes (/api/v1/*).
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/chatd/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/chatd/internal/api/middleware"
	"github.com/matiasleandrokruk/chatd/internal/api/mcpserver"
	domainauth "github.com/matiasleandrokruk/chatd/internal/domain/auth"
	"github.com/matiasleandrokruk/chatd/internal/domain/chat"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
)

// Deps are the shared services the router exposes. The coordinator and the
// factory are singletons: HTTP, MCP, and the console drive one conversation.
type Deps struct {
	DB          *sql.DB
	Coordinator *chat.Coordinator
	Factory     *llm.Factory
	Store       *chat.Store
}

// NewRouter creates and configures a chi router with all routes.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// ===== PUBLIC ROUTES (no auth required) =====

	// Health check — unauthenticated, used by load balancers and probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// Auth endpoints — public, no JWT required
	authHandler := handlers.NewAuthHandler(domainauth.NewService(d.DB))
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register) // POST /auth/register
		r.Post("/login", authHandler.Login)       // POST /auth/login
	})

	// MCP endpoint — streamable HTTP, stateless; MCP clients carry no JWT
	r.Mount("/mcp", mcpserver.Handler(mcpserver.NewServer(d.Coordinator, d.Factory)))

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)

		chatHandler := handlers.NewChatHandler(d.Coordinator)
		providerHandler := handlers.NewProviderHandler(d.Factory, d.Coordinator)
		historyHandler := handlers.NewHistoryHandler(d.Coordinator)
		conversationHandler := handlers.NewConversationHandler(d.Store)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chatHandler.Chat)             // POST /api/v1/chat
			r.Post("/stream", chatHandler.ChatStream) // POST /api/v1/chat/stream
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", providerHandler.List)          // GET /api/v1/providers
			r.Put("/active", providerHandler.Switch)  // PUT /api/v1/providers/active
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", historyHandler.Get)      // GET /api/v1/history
			r.Delete("/", historyHandler.Clear) // DELETE /api/v1/history
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)            // GET /api/v1/conversations
			r.Get("/{id}/turns", conversationHandler.Turns) // GET /api/v1/conversations/{id}/turns
		})
	})

	return r
}
