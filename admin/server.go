// Package admin serves the shop dashboard API, its websocket feed and, for the WhatsApp
// transport, the Cloud API webhook.
package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"food-whatsapp/bot"
	"food-whatsapp/services"
)

// BotStatus reports the messaging transport's health.
type BotStatus interface {
	Status() bot.Status
}

// Webhook receives WhatsApp Cloud API callbacks.
type Webhook interface {
	Verify(w http.ResponseWriter, r *http.Request)
	Receive(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Orders    *services.OrderStore
	Catalog   *services.MenuCatalog
	Customers *services.CustomerDirectory
	Pricing   *services.Pricing
	Hub       *Hub
	Bot       BotStatus
	// Webhook is nil unless the WhatsApp transport is active.
	Webhook Webhook
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	ShopName       string
	ShopPhone      string
	Currency       string
	// mutating endpoints, per client IP
	RatePerSecond float64
	RateBurst     int
}

type Server struct {
	deps     Deps
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader
	limiter  *rateLimiter
}

func New(deps Deps, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		deps:     deps,
		opts:     opts,
		log:      log.With(zap.String("component", "admin")),
		upgrader: newUpgrader(opts.AllowedOrigins),
		limiter:  newRateLimiter(opts.RatePerSecond, opts.RateBurst),
	}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	limit := s.limiter.Limit

	router.GET("/health", s.health)

	router.GET("/api/orders", s.listOrders)
	router.POST("/api/orders", limit(s.createOrder))
	router.GET("/api/orders/:id", s.getOrder)
	router.PUT("/api/orders/:id", limit(s.updateOrder))
	router.GET("/api/orders/:id/receipt", s.orderReceipt)

	router.GET("/api/menu", s.listMenu)
	router.POST("/api/menu", limit(s.addMenuItem))
	router.PUT("/api/menu/:id", limit(s.updateMenuItem))
	router.DELETE("/api/menu/:id", limit(s.deleteMenuItem))

	router.GET("/api/rates", s.listRates)
	router.PUT("/api/rates", limit(s.replaceRates))

	router.GET("/api/customers", s.listCustomers)

	router.GET("/api/bot/status", s.botStatus)
	router.GET("/api/bot/qr", s.botQR)

	router.GET("/ws", s.websocket)

	if s.deps.Webhook != nil {
		wh := s.deps.Webhook
		router.GET("/webhook", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			wh.Verify(w, r)
		})
		router.POST("/webhook", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			wh.Receive(w, r)
		})
	}

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		s.log.Error("handler panic", zap.String("path", r.URL.Path), zap.Any("panic", v))
		writeError(w, http.StatusInternalServerError, "internal error")
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return securityHeaders(s.loggingMiddleware(c.Handler(router)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	if s.deps.Hub != nil {
		srv.RegisterOnShutdown(s.deps.Hub.Stop)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("admin server listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
