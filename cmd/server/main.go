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

	"marginalia/internal/config"
	"marginalia/internal/domain"
	"marginalia/internal/handler"
	"marginalia/internal/middleware"
	"marginalia/internal/repository"
	"marginalia/internal/service"
	"marginalia/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	projectRepo := repository.NewProjectRepository(client, cfg.Database.Name)
	annotationRepo := repository.NewAnnotationRepository(client, cfg.Database.Name)
	codeRepo := repository.NewCodeRepository(client, cfg.Database.Name)
	documentRepo := repository.NewDocumentRepository(client, cfg.Database.Name)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(userRepo)
	projectService := service.NewProjectService(projectRepo, annotationRepo, codeRepo, documentRepo)
	annotationService := service.NewAnnotationService(annotationRepo, projectRepo, wsManager)
	codeService := service.NewCodeService(codeRepo, projectRepo, wsManager)
	documentService := service.NewDocumentService(documentRepo, annotationRepo, projectRepo, wsManager)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	projectHandler := handler.NewProjectHandler(projectService)
	segmentHandler := handler.NewAnnotationHandler(annotationService, domain.KindSegment)
	highlightHandler := handler.NewAnnotationHandler(annotationService, domain.KindHighlight)
	memoHandler := handler.NewAnnotationHandler(annotationService, domain.KindMemo)
	codeHandler := handler.NewCodeHandler(codeService)
	documentHandler := handler.NewDocumentHandler(documentService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", userHandler.Me).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.Rename).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/projects", projectHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/projects", projectHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/projects/{id}", projectHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/projects/{id}/meta", projectHandler.GetMeta).Methods("GET", "OPTIONS")
	protected.HandleFunc("/projects/{id}", projectHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/projects/{id}", projectHandler.Delete).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/files", documentHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/files/{id}", documentHandler.Rename).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/files/{id}", documentHandler.Delete).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/codes", codeHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/codes/{id}", codeHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/codes/{id}", codeHandler.Delete).Methods("DELETE", "OPTIONS")

	annotationRoutes := map[string]*handler.AnnotationHandler{
		"segments":   segmentHandler,
		"highlights": highlightHandler,
		"memos":      memoHandler,
	}
	for path, h := range annotationRoutes {
		protected.HandleFunc("/"+path, h.Create).Methods("POST", "OPTIONS")
		protected.HandleFunc("/"+path+"/bulk-delete", h.DeleteBulk).Methods("POST", "OPTIONS")
		protected.HandleFunc("/"+path+"/{id}", h.Update).Methods("PUT", "OPTIONS")
		protected.HandleFunc("/"+path+"/{id}", h.Delete).Methods("DELETE", "OPTIONS")
	}

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Marginalia annotation store on %s (env: %s)", addr, cfg.Server.Env)
		log.Printf("Connected to CouchDB at %s:%s", cfg.Database.Host, cfg.Database.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"marginalia"}`))
}
