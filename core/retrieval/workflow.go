// Package retrieval answers questions over a built vector index with a
// linear workflow: classify the question, retrieve matching chunks, then
// generate an answer grounded only in the retrieved context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/ragvault/helper"
	"github.com/siherrmann/ragvault/model"
	"github.com/siherrmann/ragvault/provider"
)

// Mode is the question category driving retrieval depth and prompting.
type Mode string

const (
	// ModeSummary answers broad questions from a wide context window.
	ModeSummary Mode = "summary"
	// ModeFact answers precise questions from a narrow context window.
	ModeFact Mode = "fact"
)

const (
	// SummaryTopK is the number of chunks retrieved for summary questions.
	SummaryTopK = 8
	// FactTopK is the number of chunks retrieved for fact questions.
	FactTopK = 3
	// DefaultGenerationTimeout bounds a single generation call.
	DefaultGenerationTimeout = 90 * time.Second

	// NoContextAnswer is returned without calling the generator when
	// retrieval finds nothing.
	NoContextAnswer = "I couldn't find enough information in the documents to answer that."

	summarySystemPrompt = "You are a helpful assistant. Create a concise, faithful summary ONLY using the provided context. Prefer bullet points if helpful. Do not use outside knowledge."
	factSystemPrompt    = "You are a helpful assistant. Answer precisely and ONLY using the provided context. If the context is insufficient, say so."

	contextSeparator = "\n\n---\n\n"
)

var (
	// ErrGeneration marks a failed generation call.
	ErrGeneration = errors.New("generation failed")
	// ErrTimeout marks a generation call that exceeded its deadline.
	ErrTimeout = errors.New("generation timed out, try a simpler question")
)

// summaryHints mark broad questions. They are checked before factHints, so
// a question carrying both kinds of hint is treated as a summary question.
var summaryHints = []string{"summarize", "summary", "overview", "key points", "bullet", "synthesize"}

// factHints mark questions asking for a specific value.
var factHints = []string{"when", "date", "who", "where", "amount", "total", "price", "figure", "specific", "exact"}

// Searcher finds the chunks most similar to a query embedding. Both the
// in-memory index and the Postgres handler satisfy it.
type Searcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, topK int) ([]*model.RetrievalResult, error)
}

// State carries a question through the workflow stages.
type State struct {
	Question   string
	Mode       Mode
	Results    []*model.RetrievalResult
	Generation string
}

// Workflow runs the retrieval stages in order. Every stage reads and
// updates the shared state, and a stage error aborts the run.
type Workflow struct {
	Embedder          provider.Embedder
	Generator         provider.Generator
	Searcher          Searcher
	GenerationTimeout time.Duration
	Log               *slog.Logger
}

// NewWorkflow creates a workflow over the given backends.
func NewWorkflow(embedder provider.Embedder, generator provider.Generator, searcher Searcher) *Workflow {
	return &Workflow{
		Embedder:          embedder,
		Generator:         generator,
		Searcher:          searcher,
		GenerationTimeout: DefaultGenerationTimeout,
		Log:               slog.New(slog.DiscardHandler),
	}
}

// Run answers the question and returns the final state.
func (w *Workflow) Run(ctx context.Context, question string) (*State, error) {
	state := &State{Question: question}

	state.Mode = Classify(question)
	w.Log.Info("Classified question", slog.String("mode", string(state.Mode)))

	if err := w.retrieve(ctx, state); err != nil {
		return nil, err
	}
	w.Log.Info("Retrieved context", slog.Int("chunk_count", len(state.Results)))

	if err := w.generate(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Classify determines the question mode from hint words. Summary hints are
// checked first and win when both kinds are present; a question without any
// hint is treated as a fact question.
func Classify(question string) Mode {
	lowered := strings.ToLower(question)

	for _, hint := range summaryHints {
		if strings.Contains(lowered, hint) {
			return ModeSummary
		}
	}
	for _, hint := range factHints {
		if strings.Contains(lowered, hint) {
			return ModeFact
		}
	}

	return ModeFact
}

// TopK returns the retrieval depth for a mode.
func (m Mode) TopK() int {
	if m == ModeSummary {
		return SummaryTopK
	}
	return FactTopK
}

func (w *Workflow) retrieve(ctx context.Context, state *State) error {
	embedding, err := w.Embedder.Embed(ctx, state.Question)
	if err != nil {
		return helper.NewError("embed question", err)
	}

	results, err := w.Searcher.SearchSimilar(ctx, embedding, state.Mode.TopK())
	if err != nil {
		return helper.NewError("search chunks", err)
	}

	state.Results = results
	return nil
}

func (w *Workflow) generate(ctx context.Context, state *State) error {
	if len(state.Results) == 0 {
		state.Generation = NoContextAnswer
		return nil
	}

	contents := make([]string, 0, len(state.Results))
	for _, result := range state.Results {
		contents = append(contents, result.Chunk.Content)
	}

	systemPrompt := factSystemPrompt
	if state.Mode == ModeSummary {
		systemPrompt = summarySystemPrompt
	}
	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contents, contextSeparator), state.Question)

	timeout := w.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	generateCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answer, err := w.Generator.Generate(generateCtx, systemPrompt, userPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || generateCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	state.Generation = answer
	return nil
}
