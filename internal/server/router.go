// Package server собирает HTTP API: маршруты, цепочку middleware и
// жизненный цикл http.Server.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/luxta/internal/server/handlers"
	"github.com/iudanet/luxta/internal/server/middleware"
)

// Пути с отдельным rate limit
const (
	PathRegister = "/api/v1/auth/register"
	PathLogin    = "/api/v1/auth/login"
)

// Services зависимости обработчиков
type Services struct {
	Registrar  handlers.Registrar
	Sessions   handlers.SessionService
	Authorizer middleware.Authorizer
	Tokens     handlers.TokenService
	Board      handlers.Board
}

// RouterConfig настройки маршрутизатора
type RouterConfig struct {
	Version       string
	RateWindow    time.Duration
	RateLimit     int // запросов с одного IP за окно
	AuthRateLimit int // для register и login
}

// Router http.Handler всего API
type Router struct {
	handler http.Handler
	limiter *middleware.PathLimiter
}

// NewRouter регистрирует маршруты и оборачивает их в цепочку
// recovery → logging → ratelimit → auth
func NewRouter(logger *slog.Logger, cfg RouterConfig, svc Services) *Router {
	health := handlers.NewHealthHandler(logger, cfg.Version)
	authH := handlers.NewAuthHandler(logger, svc.Registrar, svc.Sessions)
	tokenH := handlers.NewTokenHandler(logger, svc.Tokens)
	gameH := handlers.NewGameHandler(logger, svc.Board)

	protected := middleware.AuthMiddleware(logger, svc.Authorizer)
	private := func(h http.HandlerFunc) http.Handler {
		return protected(h)
	}

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /ping", health.Ping)
	mux.HandleFunc("GET /api/v1/health", health.Health)
	mux.HandleFunc("POST "+PathRegister, authH.Register)
	mux.HandleFunc("POST "+PathLogin, authH.Login)

	// Profile
	mux.Handle("POST /api/v1/auth/logout", private(authH.Logout))
	mux.Handle("GET /api/v1/me", private(authH.Me))
	mux.Handle("POST /api/v1/me/rules", private(authH.AcceptRules))

	// Tokens
	mux.Handle("POST /api/v1/tokens", private(tokenH.Issue))
	mux.Handle("GET /api/v1/tokens/{token}", private(tokenH.Status))
	mux.Handle("POST /api/v1/tokens/{token}/redeem", private(tokenH.Redeem))

	// Games
	mux.Handle("POST /api/v1/games/{game}/join", private(gameH.Join))
	mux.Handle("POST /api/v1/games/{game}/scores", private(gameH.SubmitScore))
	mux.Handle("GET /api/v1/games/{game}/leaderboard", private(gameH.Leaderboard))

	limiter := middleware.NewPathLimiter([]middleware.PathRateLimit{
		{Path: PathRegister, Rate: cfg.AuthRateLimit, Window: cfg.RateWindow},
		{Path: PathLogin, Rate: cfg.AuthRateLimit, Window: cfg.RateWindow},
	}, cfg.RateLimit, cfg.RateWindow, logger)

	var h http.Handler = mux
	h = limiter.Middleware(h)
	h = middleware.LoggingWithSkip(logger, []string{"/ping", "/api/v1/health"})(h)
	h = middleware.RecoveryMiddleware(logger)(h)

	return &Router{handler: h, limiter: limiter}
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Close останавливает фоновую очистку rate limiter
func (rt *Router) Close() {
	rt.limiter.Stop()
}
