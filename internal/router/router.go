package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/greenbasket/garden-backend/app/logger"
	"github.com/greenbasket/garden-backend/config"
	"github.com/greenbasket/garden-backend/internal/api/auth"
	"github.com/greenbasket/garden-backend/internal/api/user"
	"github.com/greenbasket/garden-backend/internal/types"
)

// Deps carries the wired handlers the router mounts.
type Deps struct {
	Config      *config.Config
	Logger      *slog.Logger
	AuthHandler *auth.AuthHandler
	UserHandler *user.UserHandler
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.StructuredLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	authenticate := auth.Authenticate(d.Logger, d.Config.JWT)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/refresh", d.AuthHandler.Refresh)
		})

		r.Route("/user", func(r chi.Router) {
			// Credential endpoints get a tighter rate limit.
			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(20, 1*time.Minute))
				r.Post("/register", d.AuthHandler.Register)
				r.Post("/login", d.AuthHandler.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Get("/logout", d.AuthHandler.Logout)
				r.Patch("/change-password", d.AuthHandler.ChangePassword)

				r.Get("/me", d.UserHandler.GetMyInfo)
				r.Get("/profile", d.UserHandler.GetProfile)
				r.Patch("/profile/edit", d.UserHandler.UpdateProfile)
				r.Get("/wishlist", d.UserHandler.GetWishlist)
				r.Patch("/wishlist/{productID}", d.UserHandler.ToggleWishlist)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireRole(d.Logger, types.RoleAdmin))
					r.Get("/all", d.UserHandler.GetAllUsers)
					r.Patch("/{userID}/deactivate", d.UserHandler.SetUserActive(false))
					r.Patch("/{userID}/reactivate", d.UserHandler.SetUserActive(true))
				})
			})
		})
	})

	return r
}
