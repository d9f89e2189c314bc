package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"rabisk.app/cloud/internal/config"
	"rabisk.app/cloud/internal/email"
	"rabisk.app/cloud/internal/issuance"
	"rabisk.app/cloud/internal/ratelimit"
	"rabisk.app/cloud/storage"
)

const (
	generalLimit  = 100
	checkoutLimit = 10
	limitWindow   = 15 * time.Minute
)

type Server struct {
	Router  chi.Router
	Storage storage.Storage
	Issuer  *issuance.Service
	Config  *config.Config
	Mailer  *email.Sender
	Version string

	// CreateSession is the outbound call to Stripe, injectable in tests.
	CreateSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

	// NotFoundDelay is slept before answering a validate-key miss.
	NotFoundDelay time.Duration

	limiter *ratelimit.FixedWindowLimiter
}

func NewServer(cfg *config.Config, store storage.Storage, mailer *email.Sender) *Server {
	s := &Server{
		Storage:       store,
		Issuer:        issuance.NewService(store),
		Config:        cfg,
		Mailer:        mailer,
		CreateSession: session.New,
		NotFoundDelay: cfg.ValidateNotFoundDelay,
		limiter:       ratelimit.New(generalLimit, limitWindow),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
	}))

	// Stripe redeliveries must never be throttled.
	r.Use(ratelimit.Middleware(s.limiter, "/webhook"))

	checkoutLimiter := ratelimit.New(checkoutLimit, limitWindow)

	r.Get("/", s.Health)
	r.With(ratelimit.Middleware(checkoutLimiter)).Post("/create-checkout", s.CreateCheckout)
	r.Post("/webhook", s.Webhook)
	r.Post("/validate-key", s.ValidateKey)

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	RequestsAllowed int64  `json:"requests_allowed"`
	RequestsLimited int64  `json:"requests_limited"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	allowed, denied := s.limiter.Counts()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "online",
		Version:         s.Version,
		RequestsAllowed: allowed,
		RequestsLimited: denied,
	})
}
