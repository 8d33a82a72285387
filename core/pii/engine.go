// Package pii detects and anonymizes personally identifiable information.
// Pattern recognizers cover structured formats (emails, card numbers, SSNs),
// a NER model covers names and locations. Detection results are offset
// spans over the input text which the anonymizer rewrites back to front.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/ragvault/helper"
	"github.com/siherrmann/ragvault/model"
)

// DefaultThreshold is the minimum confidence for a detection to count.
const DefaultThreshold = 0.5

// NERFunc runs named-entity recognition over a text and returns the
// person and location spans found in it.
type NERFunc func(text string) ([]model.PIIEntity, error)

// NERLoader creates a NERFunc. Loading is expensive (model download and
// session setup), so the engine defers it until first use.
type NERLoader func() (NERFunc, error)

// Engine is the PII detection and anonymization engine. The NER model is
// loaded lazily on first detection; if loading fails the engine reports
// itself unavailable and detection degrades to returning nothing, leaving
// input text untouched.
type Engine struct {
	loader NERLoader
	log    *slog.Logger

	once   sync.Once
	ner    NERFunc
	nerErr error
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNERLoader replaces the default NER model loader.
func WithNERLoader(loader NERLoader) EngineOption {
	return func(e *Engine) {
		e.loader = loader
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = logger
	}
}

// NewEngine creates a PII engine. Without options it loads the
// distilbert-NER model on first use.
func NewEngine(opts ...EngineOption) *Engine {
	engine := &Engine{
		loader: DefaultNERRecognizer,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) init() {
	e.once.Do(func() {
		e.ner, e.nerErr = e.loader()
		if e.nerErr != nil {
			e.log.Warn("PII engine unavailable, detection disabled", slog.Any("error", e.nerErr))
		}
	})
}

// Available reports whether the NER model loaded successfully. An
// unavailable engine detects nothing and anonymization passes text through.
func (e *Engine) Available() bool {
	e.init()
	return e.nerErr == nil
}

// Detect finds PII entities in text with confidence at or above threshold.
// An empty allowlist means all supported entity types. Overlapping
// detections are resolved so the returned spans never overlap: higher
// confidence wins, then the longer span, then the earlier start.
func (e *Engine) Detect(text string, allowlist []model.EntityType, threshold float64) []model.PIIEntity {
	if !e.Available() || text == "" {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	allowed := map[model.EntityType]bool{}
	for _, entityType := range allowlist {
		allowed[entityType] = true
	}
	isAllowed := func(entityType model.EntityType) bool {
		return len(allowed) == 0 || allowed[entityType]
	}

	var candidates []model.PIIEntity
	for _, recognizer := range patternRecognizers {
		if recognizer.score < threshold || !isAllowed(recognizer.entityType) {
			continue
		}
		for _, match := range recognizer.pattern.FindAllStringIndex(text, -1) {
			matched := text[match[0]:match[1]]
			if recognizer.validate != nil && !recognizer.validate(matched) {
				continue
			}
			candidates = append(candidates, model.PIIEntity{
				Type:  recognizer.entityType,
				Text:  matched,
				Score: recognizer.score,
				Start: match[0],
				End:   match[1],
			})
		}
	}

	nerEntities, err := e.ner(text)
	if err != nil {
		e.log.Warn("NER detection failed, pattern results only", slog.Any("error", err))
	}
	for _, entity := range nerEntities {
		if entity.Score >= threshold && isAllowed(entity.Type) {
			candidates = append(candidates, entity)
		}
	}

	return resolveOverlaps(candidates)
}

// resolveOverlaps greedily keeps the best candidate per region: candidates
// are ranked by score, then span length, then start offset, and a candidate
// is dropped when it overlaps one already kept. The result is sorted by
// start offset.
func resolveOverlaps(candidates []model.PIIEntity) []model.PIIEntity {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		lenI := candidates[i].End - candidates[i].Start
		lenJ := candidates[j].End - candidates[j].Start
		if lenI != lenJ {
			return lenI > lenJ
		}
		return candidates[i].Start < candidates[j].Start
	})

	var kept []model.PIIEntity
	for _, candidate := range candidates {
		overlaps := false
		for _, existing := range kept {
			if candidate.Start < existing.End && existing.Start < candidate.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})

	return kept
}

// Anonymize rewrites the detected spans in text according to method.
// Spans are applied back to front so earlier offsets stay valid while
// later spans are rewritten. Entities with offsets outside the text are
// skipped. An unavailable engine returns the input unchanged.
func (e *Engine) Anonymize(text string, entities []model.PIIEntity, method model.AnonymizationMethod) string {
	if !e.Available() || len(entities) == 0 {
		return text
	}

	ordered := make([]model.PIIEntity, len(entities))
	copy(ordered, entities)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	result := text
	for _, entity := range ordered {
		if entity.Start < 0 || entity.End > len(result) || entity.Start >= entity.End {
			continue
		}

		var replacement string
		switch method {
		case model.MethodMask:
			replacement = strings.Repeat("*", entity.End-entity.Start)
		case model.MethodHash:
			sum := sha256.Sum256([]byte(result[entity.Start:entity.End]))
			replacement = hex.EncodeToString(sum[:])
		case model.MethodRedact:
			replacement = ""
		default:
			replacement = entity.Type.Placeholder()
		}

		result = result[:entity.Start] + replacement + result[entity.End:]
	}

	return result
}

// DetectAndAnonymize runs detection and anonymization over the same text in
// one call, so the returned entity list always matches the rewritten text.
func (e *Engine) DetectAndAnonymize(text string, method model.AnonymizationMethod, allowlist []model.EntityType, threshold float64) (string, []model.PIIEntity) {
	entities := e.Detect(text, allowlist, threshold)
	return e.Anonymize(text, entities, method), entities
}

// FormatReport renders per-type detection counts, one line per type,
// sorted by count descending.
func FormatReport(entities []model.PIIEntity) string {
	if len(entities) == 0 {
		return "No PII detected."
	}

	stats := model.EntityStatistics(entities)
	types := make([]model.EntityType, 0, len(stats))
	for entityType := range stats {
		types = append(types, entityType)
	}
	sort.Slice(types, func(i, j int) bool {
		if stats[types[i]] != stats[types[j]] {
			return stats[types[i]] > stats[types[j]]
		}
		return types[i] < types[j]
	})

	var builder strings.Builder
	fmt.Fprintf(&builder, "Detected %d PII entities:\n", len(entities))
	for _, entityType := range types {
		fmt.Fprintf(&builder, "  %s: %d\n", entityType, stats[entityType])
	}

	return builder.String()
}

// DefaultNERRecognizer loads the distilbert-NER token classification model
// and returns a NERFunc mapping PER and LOC labels to PII entities.
// Organization and miscellaneous labels are not PII and are dropped.
func DefaultNERRecognizer() (NERFunc, error) {
	modelName := "KnightsAnalytics/distilbert-NER"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "pii-ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(text string) ([]model.PIIEntity, error) {
		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		if len(result.Entities) == 0 {
			return nil, nil
		}

		var entities []model.PIIEntity
		for _, entity := range result.Entities[0] {
			entityType, ok := nerEntityType(entity.Entity)
			if !ok {
				continue
			}
			entities = append(entities, model.PIIEntity{
				Type:  entityType,
				Text:  strings.TrimSpace(entity.Word),
				Score: float64(entity.Score),
				Start: int(entity.Start),
				End:   int(entity.End),
			})
		}

		return entities, nil
	}, nil
}

// nerEntityType maps a NER label to a PII entity type. BIO tagging
// prefixes (B-, I-) are stripped first.
func nerEntityType(label string) (model.EntityType, bool) {
	label = strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
	switch label {
	case "PER":
		return model.EntityPerson, true
	case "LOC":
		return model.EntityLocation, true
	default:
		return "", false
	}
}
