package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tienda/auth"
	"tienda/carts"
	"tienda/config"
	"tienda/db"
	"tienda/mailer"
	"tienda/middleware"
	"tienda/mq"
	"tienda/products"
	"tienda/ratelim"
	"tienda/rdx"
	"tienda/routes"
	"tienda/tickets"
	"tienda/users"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongo, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoName)
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer mongo.Close(context.Background())

	if err := mongo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	cache, err := rdx.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer cache.Close()

	// Stores and services are built once here and handed to the handlers.
	userStore := users.NewStore(mongo.Users)
	productStore := products.NewStore(mongo.Products)
	cartStore := carts.NewStore(mongo.Carts, cfg.CartTTL)
	ticketStore := tickets.NewStore(mongo.Tickets)

	stockHub := products.NewStockHub()
	emitter := mq.NewEmitter(cache, "purchases")
	cartService := carts.NewService(cartStore, productStore, ticketStore, userStore, stockHub, emitter)

	var mail mailer.Mailer = mailer.LogOnly{}
	if cfg.SendgridAPIKey != "" {
		mail = mailer.NewSendGrid(cfg.SendgridAPIKey, "Tienda", cfg.MailFrom)
	}

	authMW := middleware.NewAuth([]byte(cfg.JWTSecret))
	rateLimiter := ratelim.New(1, 5)

	authHandlers := auth.NewHandlers(userStore, authMW)
	resetHandlers := auth.NewResetHandlers(userStore, cache, mail, cfg.ResetTokenTTL, cfg.ResetURLBase)
	productHandlers := products.NewHandlers(productStore, cfg.UploadDir)
	cartHandlers := carts.NewHandlers(cartService, cartStore, userStore)
	ticketHandlers := tickets.NewHandlers(ticketStore, []byte(cfg.JWTSecret))

	router := httprouter.New()
	router.GET("/health", Index)
	routes.AddAuthRoutes(router, authHandlers, resetHandlers, authMW, rateLimiter)
	routes.AddProductRoutes(router, productHandlers, authMW)
	routes.AddCartRoutes(router, cartHandlers, authMW, rateLimiter)
	routes.AddTicketRoutes(router, ticketHandlers, authMW)
	routes.AddStockRoutes(router, stockHub)
	routes.AddStaticRoutes(router, cfg.UploadDir)

	// CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           loggingMiddleware(securityHeaders(corsHandler)),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Println("✅ Server stopped cleanly")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
