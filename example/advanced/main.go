package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/siherrmann/ragvault"
	"github.com/siherrmann/ragvault/core/pipeline"
	"github.com/siherrmann/ragvault/helper"
	"github.com/siherrmann/ragvault/loader"
	"github.com/siherrmann/ragvault/model"
	"github.com/siherrmann/ragvault/provider"
)

func main() {
	// Load OPENAI_API_KEY from a local .env file if present
	_ = godotenv.Load()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is not set")
	}

	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <document.pdf> [more documents...]", os.Args[0])
	}

	// Embeddings run locally, only generation goes to OpenAI
	embedder, err := pipeline.NewLocalEmbedder()
	if err != nil {
		log.Fatalf("Failed to load local embedding model: %v", err)
	}
	generator := provider.NewOpenAI(apiKey)

	vault, err := ragvault.New("./.ragvault-cache", embedder, generator)
	if err != nil {
		log.Fatalf("Failed to create vault: %v", err)
	}

	// Start a test PostgreSQL container for the vector index
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	if err := vault.UsePostgresIndex(dbConfig); err != nil {
		log.Fatalf("Failed to attach Postgres index: %v", err)
	}
	defer vault.Close()

	// Load the documents given on the command line
	var documents []*model.Document
	for _, path := range os.Args[1:] {
		document, err := loader.Load(path)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", path, err)
		}
		documents = append(documents, document)
		fmt.Printf("Loaded %s (%d pages)\n", document.Name, len(document.Units))
	}

	// Hash anonymization keeps identical identifiers co-referent across chunks
	config := model.AnonymizationConfig{
		Enabled: true,
		Method:  model.MethodHash,
		EntityTypes: []model.EntityType{
			model.EntityPerson,
			model.EntityEmailAddress,
			model.EntityUSSSN,
			model.EntityCreditCard,
		},
	}

	ctx := context.Background()

	fmt.Println("\nBuilding index...")
	session, err := vault.SetupRAG(ctx, documents, config, true)
	if err != nil {
		log.Fatalf("Failed to set up session: %v", err)
	}
	fmt.Printf("Cache key: %s (%d vectors)\n", session.Key(), session.VectorCount())
	fmt.Println(session.PIIReport())

	questions := []string{
		"Give me an overview of these documents",
		"What specific amounts are mentioned?",
	}

	for _, question := range questions {
		answer, err := session.Ask(ctx, question)
		if err != nil {
			log.Fatalf("Failed to answer question: %v", err)
		}

		fmt.Printf("\nQ (%s): %s\n", answer.Mode, question)
		fmt.Printf("A: %s\n", answer.Text)
		fmt.Printf("Sources:\n")
		for _, source := range answer.Sources {
			fmt.Printf("  - %s page %d (similarity %.4f)\n",
				source.Chunk.SourceFile, source.Chunk.Page, source.Similarity)
		}
	}

	fmt.Println("\nAdvanced example completed successfully!")
}
