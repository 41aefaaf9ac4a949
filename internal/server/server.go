package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"healthbridge/internal/auth"
	"healthbridge/internal/config"
	"healthbridge/internal/db"
	"healthbridge/internal/handlers"
	"healthbridge/internal/repositories"
	"healthbridge/internal/routes"
	"healthbridge/internal/services"
)

// corsMiddleware adds CORS headers to all responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewServer wires the full application and returns a ready-to-run HTTP
// server. The vector store must be reachable; Redis is optional and falls
// back to in-memory stores.
func NewServer() (*http.Server, error) {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Printf("Configuration loaded (environment: %s)", cfg.App.Environment)

	vectorRepo, err := initializeVectorRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	conversations, profiles := initializeStores(cfg, logger)

	// Services
	retrievalService := services.NewRetrievalService(vectorRepo, cfg.Chroma.Collection, logger)
	classifier := services.NewTaskClassifier(cfg.Classifier)
	memoryService := services.NewMemoryService(conversations, logger)
	crewClient := services.NewCrewClient(cfg.Crew.BaseURL, cfg.CrewTimeout())
	booker := services.NewWebhookBooker(cfg.Webhook.URL, cfg.WebhookTimeout(), logger)
	chatService := services.NewChatService(retrievalService, classifier, memoryService, crewClient, booker, cfg.Retrieval, logger)
	ingestService := services.NewIngestService(vectorRepo, cfg.Chroma.Collection, cfg.Ingest, logger)

	tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.TokenExpiry())

	// Handlers
	ragPolicy := handlers.RAGPolicy{
		TopK:              cfg.Retrieval.TopK,
		DoctorTopK:        cfg.Retrieval.DoctorTopK,
		DistanceThreshold: cfg.Retrieval.DistanceThreshold,
	}

	h := &routes.Handlers{
		Auth:           handlers.NewAuthHandler(tokens, cfg.Auth.Users, logger),
		Chat:           handlers.NewChatHandler(chatService, logger),
		RAG:            handlers.NewRAGHandler(retrievalService, ragPolicy, logger),
		Profile:        handlers.NewProfileHandler(profiles, memoryService, logger),
		Status:         handlers.NewStatusHandler(vectorRepo, crewClient, memoryService, profiles, cfg.App.Version, logger),
		Ingest:         handlers.NewIngestHandler(ingestService, logger),
		AuthMiddleware: auth.Middleware(tokens),
	}

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h)

	// Add Swagger endpoints
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Printf("Server configured on %s", addr)

	return &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}, nil
}

// initializeVectorRepository connects to ChromaDB and verifies it is
// reachable. Retrieval cannot run without it, so a failed probe is fatal.
func initializeVectorRepository(cfg *config.Config, logger *log.Logger) (repositories.VectorRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Printf("Connecting to ChromaDB: %s:%d", cfg.Chroma.Host, cfg.Chroma.Port)

	chromaClient := db.NewChromaDBClient(db.ChromaDBConfig{
		Host:     cfg.Chroma.Host,
		Port:     cfg.Chroma.Port,
		Tenant:   cfg.Chroma.Tenant,
		Database: cfg.Chroma.Database,
		Timeout:  cfg.ChromaTimeout(),
	})

	if err := chromaClient.Heartbeat(ctx); err != nil {
		logger.Printf("ChromaDB connection failed: %v", err)
		logger.Println("   Hint: Ensure ChromaDB is running (docker run -d -p 8000:8000 chromadb/chroma)")
		return nil, fmt.Errorf("chromadb unavailable: %w", err)
	}
	logger.Println("ChromaDB connected successfully")

	return repositories.NewChromaVectorRepository(chromaClient), nil
}

// initializeStores connects to Redis for conversation and profile storage,
// falling back to in-memory stores when Redis is unreachable.
func initializeStores(cfg *config.Config, logger *log.Logger) (repositories.ConversationStore, repositories.ProfileStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Printf("Connecting to Redis: %s:%d (DB: %d)", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)

	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err == nil {
		err = redisClient.Ping(ctx)
	}
	if err != nil {
		logger.Printf("Redis connection failed: %v", err)
		logger.Println("   Conversations and profiles will be kept in memory only")
		logger.Println("   Hint: Ensure Redis is running (docker run -d -p 6379:6379 redis:7-alpine)")
		return repositories.NewInMemoryConversationStore(), repositories.NewInMemoryProfileStore()
	}

	logger.Println("Redis connected successfully")
	return repositories.NewRedisConversationStore(redisClient.GetClient()),
		repositories.NewRedisProfileStore(redisClient.GetClient())
}
