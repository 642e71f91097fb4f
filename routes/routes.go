package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/developeragencia/conselhoscursor-sub001/controllers"
	"github.com/developeragencia/conselhoscursor-sub001/controllers/auth"
	"github.com/developeragencia/conselhoscursor-sub001/middleware"
	"github.com/developeragencia/conselhoscursor-sub001/ws"
)

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "conselhos-api",
	})
}

func InitRouter(wsServer *ws.Server) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint for Docker health checks (root level)
	r.Handle("/health", http.HandlerFunc(healthHandler)).Methods(http.MethodGet)

	// CORS - origins from CORS_ALLOWED_ORIGINS (comma-separated) or defaults
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	origins := []string{
		"http://localhost:3000", "http://localhost:8080", "http://127.0.0.1:3000", "http://127.0.0.1:8080",
	}
	if originsEnv != "" {
		parts := strings.Split(originsEnv, ",")
		for _, p := range parts {
			if o := strings.TrimSpace(p); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Admin-Key", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	// The websocket endpoint bypasses the API middleware chain: rate limiting
	// and body caps are frame-level concerns handled inside the transport.
	r.Handle("/ws", wsServer.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	authLimiter := middleware.NewIPRateLimiter(50, time.Minute)
	apiLimiter := middleware.NewIPRateLimiter(200, time.Minute)
	userLimiter := middleware.NewUserRateLimiter(100, 50, 60)

	protect := func(h http.HandlerFunc) http.Handler {
		return apiLimiter.Middleware(middleware.AuthMiddleware(userLimiter.Middleware(h)))
	}

	// Auth
	api.Handle("/auth/register", authLimiter.Middleware(http.HandlerFunc(auth.RegisterHandler))).Methods(http.MethodPost)
	api.Handle("/auth/login", authLimiter.Middleware(http.HandlerFunc(auth.LoginHandler))).Methods(http.MethodPost)
	api.Handle("/auth/refresh", authLimiter.Middleware(http.HandlerFunc(auth.RefreshHandler))).Methods(http.MethodPost)
	api.Handle("/auth/logout", authLimiter.Middleware(http.HandlerFunc(auth.LogoutHandler))).Methods(http.MethodPost)

	// Consultant directory and presence
	api.Handle("/consultants", apiLimiter.Middleware(http.HandlerFunc(controllers.ListConsultantsHandler))).Methods(http.MethodGet)
	api.Handle("/consultants/status", protect(controllers.SetConsultantStatusHandler)).Methods(http.MethodPut)

	// Consultation lifecycle
	api.Handle("/consultations", protect(controllers.StartConsultationHandler)).Methods(http.MethodPost)
	api.Handle("/consultations", protect(controllers.ConsultationHistoryHandler)).Methods(http.MethodGet)
	api.Handle("/consultations/active", protect(controllers.ActiveConsultationHandler)).Methods(http.MethodGet)
	api.Handle("/consultations/stats", protect(controllers.ConsultationStatsHandler)).Methods(http.MethodGet)
	api.Handle("/consultations/{id:[0-9]+}", protect(controllers.GetConsultationHandler)).Methods(http.MethodGet)
	api.Handle("/consultations/{id:[0-9]+}/end", protect(controllers.EndConsultationHandler)).Methods(http.MethodPost)

	// Messages
	api.Handle("/consultations/{id:[0-9]+}/messages", protect(controllers.PostMessageHandler)).Methods(http.MethodPost)
	api.Handle("/consultations/{id:[0-9]+}/messages", protect(controllers.ListMessagesHandler)).Methods(http.MethodGet)

	// Credits
	api.Handle("/credits/balance", protect(controllers.CreditBalanceHandler)).Methods(http.MethodGet)
	api.Handle("/credits/transactions", protect(controllers.CreditTransactionsHandler)).Methods(http.MethodGet)
	api.Handle("/credits/topup", apiLimiter.Middleware(http.HandlerFunc(controllers.TopUpHandler))).Methods(http.MethodPost)

	api.Handle("/health", http.HandlerFunc(healthHandler)).Methods(http.MethodGet)

	return r
}
