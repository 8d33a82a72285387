package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/siherrmann/ragvault"
	"github.com/siherrmann/ragvault/model"
	"github.com/siherrmann/ragvault/provider"
)

const sampleContent = `Employee record for the quarterly review.

John Doe (john.doe@example.com, SSN 123-45-6789) joined the platform team
in March and completed the onboarding plan ahead of schedule. His manager
can be reached at 555-123-4567 for references.

The review covers code quality, incident response and collaboration.
Overall rating: exceeds expectations.`

func main() {
	// Load OPENAI_API_KEY from a local .env file if present
	_ = godotenv.Load()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is not set")
	}

	// One OpenAI client serves both embeddings and generation
	openAI := provider.NewOpenAI(apiKey)

	vault, err := ragvault.New("./.ragvault-cache", openAI, openAI)
	if err != nil {
		log.Fatalf("Failed to create vault: %v", err)
	}

	doc := &model.Document{
		Name: "review.txt",
		Size: int64(len(sampleContent)),
		Units: []model.Unit{
			{Text: sampleContent, Page: 1},
		},
	}

	// Anonymize detected PII with placeholder tags before indexing
	config := model.AnonymizationConfig{
		Enabled: true,
		Method:  model.MethodReplace,
	}

	ctx := context.Background()

	fmt.Println("Building index...")
	session, err := vault.SetupRAG(ctx, []*model.Document{doc}, config, true)
	if err != nil {
		log.Fatalf("Failed to set up session: %v", err)
	}
	fmt.Printf("Cache key: %s (%d vectors)\n", session.Key(), session.VectorCount())
	fmt.Println(session.PIIReport())

	questions := []string{
		"Summarize the quarterly review",
		"When did the employee join the team?",
	}

	for _, question := range questions {
		// Warn when the question itself carries PII
		if entities := vault.ScanQuery(question); len(entities) > 0 {
			fmt.Printf("Warning: question contains %d PII entities\n", len(entities))
		}

		answer, err := session.Ask(ctx, question)
		if err != nil {
			log.Fatalf("Failed to answer question: %v", err)
		}

		fmt.Printf("\nQ (%s): %s\n", answer.Mode, question)
		fmt.Printf("A: %s\n", answer.Text)
		if answer.Leaked {
			fmt.Println("Note: identifiers were scrubbed from this answer")
		}
	}

	stats, err := vault.CacheStatistics()
	if err != nil {
		log.Fatalf("Failed to read cache statistics: %v", err)
	}
	fmt.Printf("\nCache: %d entries, %d bytes\n", stats.TotalEntries, stats.TotalSizeBytes)

	fmt.Println("\nBasic example completed successfully!")
}
