// Package main HealthBridge AI API Server
//
//	@title			HealthBridge AI API
//	@version		1.0
//	@description	A medical information chat service with role-scoped retrieval, task selection, and conversation memory
//
//	@contact.name	API Support
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the access token.
package main

import (
	"log"

	"github.com/joho/godotenv"

	_ "healthbridge/docs" // This imports the docs package to initialize swagger
	"healthbridge/internal/server"
)

func main() {
	// Optional .env for local development; real environments set variables
	// directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	log.Println("Starting HealthBridge AI Server...")
	srv, err := server.NewServer()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
