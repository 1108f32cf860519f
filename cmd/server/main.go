package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"researchhub-chat/internal/chat"
	"researchhub-chat/internal/config"
	"researchhub-chat/internal/db"
	"researchhub-chat/internal/middleware"
	"researchhub-chat/internal/project"
	"researchhub-chat/internal/user"
)

func main() {
	// 1. Config & Flags
	addrFlag := flag.String("addr", "", "http service address (overrides ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	addr := cfg.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	// 2. Connect to Database (Platform Layer)
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	defer pool.Close()
	log.Println("✅ Connected to PostgreSQL")

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database Schema Initialized")

	// 3. Identity Feature
	userRepo := user.NewRepository(pool)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	// 4. Projects (membership backs project-room authorization)
	projectRepo := project.NewRepository(pool)
	projectHandler := project.NewHandler(projectRepo)

	// 5. Chat Core
	chatRepo := chat.NewRepository(pool)
	hub := chat.NewHub(chatRepo, projectRepo)
	chatHandler := chat.NewHandler(hub, chatRepo, projectRepo, cfg.AllowedOrigins)

	authMiddleware := middleware.NewAuth(userService)

	// 6. Routes
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public Routes
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/api/users/search", userHandler.SearchUsers)

		// WebSocket (Real-time)
		r.Get("/ws", chatHandler.ServeWs)

		// Durable history & request-driven chat
		r.Get("/api/chat/conversations", chatHandler.ListConversations)
		r.Get("/api/chat/history/{userID}", chatHandler.DirectHistory)
		r.Get("/api/chat/project/{projectID}", chatHandler.ProjectHistory)
		r.Post("/api/chat/send", chatHandler.SendMessage)

		// Projects
		r.Post("/api/projects", projectHandler.Create)
		r.Get("/api/projects", projectHandler.List)
		r.Post("/api/projects/{projectID}/members", projectHandler.AddMember)
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)

	log.Printf("🚀 Server starting on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
