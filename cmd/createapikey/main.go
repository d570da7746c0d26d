package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/keyline/license-backoffice/internal/domain/apikey"
	"github.com/keyline/license-backoffice/internal/storage/postgres"
	"github.com/keyline/license-backoffice/internal/util"
	"go.uber.org/zap"
)

// Mints an agent API key and stores its hash. The full key is printed once
// and cannot be recovered afterwards.
func main() {
	description := flag.String("description", "", "what this key is for (required)")
	scopeFlag := flag.String("scope", string(apikey.ScopeValidate), "key scope: validate, activate or full")
	productFlag := flag.String("product-id", "", "optional product UUID to bind the key to")
	flag.Parse()

	if *description == "" {
		flag.Usage()
		log.Fatal("-description is required")
	}

	scope := apikey.Scope(*scopeFlag)
	if !scope.Valid() {
		log.Fatalf("Unknown scope %q, want validate, activate or full", *scopeFlag)
	}

	var productID uuid.UUID
	if *productFlag != "" {
		parsed, err := uuid.Parse(*productFlag)
		if err != nil {
			log.Fatalf("Invalid product id %q: %v", *productFlag, err)
		}
		productID = parsed
	}

	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewAPIKeyRepository(pool, logger)
	keyID, err := repo.Create(context.Background(), &apikey.APIKey{
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: *description,
		ProductID:   productID,
		Scope:       scope,
		IsEnabled:   true,
	})
	if err != nil {
		log.Fatalf("Failed to save API key to database: %v", err)
	}

	fmt.Printf("API key %s created (prefix %s, scope %s)\n\n", keyID, prefix, scope)
	fmt.Printf("Full key, shown once:\n%s\n", fullKey)
}
