package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"scheduler-client/internal/handlers"
	"scheduler-client/internal/middleware"
	"scheduler-client/internal/websocket"
)

type Handlers struct {
	Tasks     *handlers.TaskHandler
	StudyPlan *handlers.StudyPlanHandler
	Sync      *handlers.SyncHandler
	Session   *handlers.SessionHandler
}

func New(h Handlers, wsHub *websocket.Hub, aiLimiter *middleware.RateLimiter, frontendURL string, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Task Routes ────
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.Tasks.List)
			r.Post("/", h.Tasks.Create)
			r.Put("/{id}/status", h.Tasks.UpdateStatus)
			r.Delete("/{id}", h.Tasks.Delete)

			r.Group(func(r chi.Router) {
				r.Use(aiLimiter.Middleware)
				r.Post("/prioritize", h.Tasks.Prioritize)
				r.Post("/import", h.Tasks.Import)
			})
		})

		// ──── Study Plan Routes ────
		r.Route("/study-plan", func(r chi.Router) {
			r.Get("/", h.StudyPlan.Get)
			r.Put("/", h.StudyPlan.Put)
			r.Delete("/", h.StudyPlan.Delete)
			r.Post("/parse", h.StudyPlan.Parse)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.StudyPlan.AddSession)
				r.Delete("/{id}", h.StudyPlan.RemoveSession)
				r.Post("/{id}/toggle", h.StudyPlan.ToggleSession)
				r.With(aiLimiter.Middleware).Post("/{id}/research-tips", h.StudyPlan.ResearchTips)
			})

			r.Group(func(r chi.Router) {
				r.Use(aiLimiter.Middleware)
				r.Post("/generate", h.StudyPlan.Generate)
				r.Post("/schedule", h.StudyPlan.Schedule)
			})
		})

		// ──── Cloud Sync Routes ────
		r.Route("/sync", func(r chi.Router) {
			r.Post("/push", h.Sync.Push)
			r.Post("/pull", h.Sync.Pull)
			r.Get("/status", h.Sync.Status)
		})

		// ──── Session Routes ────
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.Session.Get)
			r.Post("/token", h.Session.SetToken)
			r.Delete("/token", h.Session.ClearToken)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
