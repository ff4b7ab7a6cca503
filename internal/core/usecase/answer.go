package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
	"github.com/aniketgiri96/Ragnetic/internal/core/ports"
)

const noContextAnswer = "No relevant documents found in the selected knowledge base yet. Upload documents and try again."

const groundedSystemPrompt = "You are a grounded assistant for this RAG system. " +
	"Use only the provided context blocks for factual claims; never invent details. " +
	"Use conversation history only for continuity. " +
	"Answer the user directly from available evidence, regardless of document type " +
	"(for example PRDs, runbooks, policies, specs, tickets, or notes). " +
	"If partial evidence exists, provide what is known and mark missing parts as " +
	"\"Not specified in provided context.\" " +
	"Do not ask for more context unless zero relevant evidence exists. " +
	"Do not say \"I couldn't find\" when at least one relevant fact is available. " +
	"When the question asks for lists (features, phases, requirements, steps, risks), " +
	"respond in a concise structured list. " +
	"For every factual bullet/sentence, append citations in the form [Source N]."

// AnswerConfig tunes answer orchestration around the retrieval core.
type AnswerConfig struct {
	SourceLimit              int
	UniqueSourcesPerDocument bool
	EnforceCitations         bool
	LegendMaxItems           int
}

// AnswerUseCase orchestrates one grounded question: retrieve evidence,
// assemble a budgeted context, generate, then post-process citations and
// score grounding.
type AnswerUseCase struct {
	retriever *HybridRetrieveUseCase
	assembler *ContextAssembler
	checker   *FaithfulnessChecker
	generator ports.TextGenerator
	cfg       AnswerConfig
	logger    *slog.Logger
}

func NewAnswerUseCase(
	retriever *HybridRetrieveUseCase,
	assembler *ContextAssembler,
	checker *FaithfulnessChecker,
	generator ports.TextGenerator,
	cfg AnswerConfig,
	logger *slog.Logger,
) *AnswerUseCase {
	if cfg.SourceLimit < 1 {
		cfg.SourceLimit = 4
	}
	if cfg.LegendMaxItems < 1 {
		cfg.LegendMaxItems = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		retriever: retriever,
		assembler: assembler,
		checker:   checker,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	return uc.answer(ctx, req, nil)
}

// AnswerStream behaves like Answer but forwards generation chunks to emit as
// they arrive. Post-processing appended after the stream (citations, legend)
// is emitted as a final chunk.
func (uc *AnswerUseCase) AnswerStream(ctx context.Context, req domain.AnswerRequest, emit func(chunk string) error) (*domain.Answer, error) {
	if emit == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer stream", errors.New("nil emit callback"))
	}
	return uc.answer(ctx, req, emit)
}

func (uc *AnswerUseCase) answer(ctx context.Context, req domain.AnswerRequest, emit func(chunk string) error) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("empty question"))
	}

	sourceLimit := uc.cfg.SourceLimit
	if req.TopK > 0 {
		sourceLimit = req.TopK
	}
	fetchLimit := sourceLimit
	if uc.cfg.UniqueSourcesPerDocument {
		fetchLimit = sourceLimit * 3
	}

	candidates, err := uc.retriever.Retrieve(ctx, req.KnowledgeBaseID, question, req.History, fetchLimit)
	if err != nil {
		return nil, err
	}
	candidates = uc.dedupeByDocument(candidates, sourceLimit)

	assembly := uc.assembler.Assemble(question, req.History, candidates)
	if strings.TrimSpace(assembly.ContextBlocks) == "" {
		if emit != nil {
			if err := emit(noContextAnswer); err != nil {
				return nil, fmt.Errorf("emit answer: %w", err)
			}
		}
		return &domain.Answer{
			Text:        noContextAnswer,
			Sources:     []domain.ContextSource{},
			TokenBudget: assembly.TokenBudget,
		}, nil
	}

	prompt := buildAnswerPrompt(question, req.History, assembly.ContextBlocks)

	var answer string
	var generated string
	if emit == nil {
		generated, err = uc.generator.Generate(ctx, prompt, groundedSystemPrompt)
	} else {
		var sb strings.Builder
		err = uc.generator.GenerateStream(ctx, prompt, groundedSystemPrompt, func(chunk string) error {
			if chunk == "" {
				return nil
			}
			sb.WriteString(chunk)
			return emit(chunk)
		})
		generated = sb.String()
	}
	if err != nil {
		detail := strings.TrimSpace(err.Error())
		uc.logger.Warn("generation failed, returning retrieved excerpts",
			slog.Int("knowledge_base_id", req.KnowledgeBaseID),
			slog.String("error", detail),
		)
		answer = fallbackAnswerFromSources(assembly.Sources, detail)
		if emit != nil {
			if emitErr := emit(answer); emitErr != nil {
				return nil, fmt.Errorf("emit fallback answer: %w", emitErr)
			}
		}
	} else {
		answer = strings.TrimSpace(generated)
		answer = enforceCitationFormat(answer, assembly.Sources, uc.cfg.EnforceCitations)
		answer = appendCitationLegend(answer, assembly.Sources, uc.cfg.LegendMaxItems)
		if emit != nil && strings.HasPrefix(answer, strings.TrimSpace(generated)) {
			if suffix := answer[len(strings.TrimSpace(generated)):]; suffix != "" {
				if emitErr := emit(suffix); emitErr != nil {
					return nil, fmt.Errorf("emit citation suffix: %w", emitErr)
				}
			}
		}
	}

	return &domain.Answer{
		Text:         answer,
		Sources:      assembly.Sources,
		Faithfulness: uc.checker.Signals(answer, assembly.Sources),
		TokenBudget:  assembly.TokenBudget,
		TokenUsed:    assembly.TokenUsed,
	}, nil
}

// dedupeByDocument keeps the best-ranked candidate per document so one long
// document cannot monopolize the context.
func (uc *AnswerUseCase) dedupeByDocument(candidates []domain.Candidate, limit int) []domain.Candidate {
	if !uc.cfg.UniqueSourcesPerDocument {
		if len(candidates) > limit {
			return candidates[:limit]
		}
		return candidates
	}
	deduped := make([]domain.Candidate, 0, limit)
	seen := make(map[string]struct{}, limit)
	for idx, candidate := range candidates {
		key := sourceIdentity(candidate, idx)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, candidate)
		if len(deduped) >= limit {
			break
		}
	}
	return deduped
}

func sourceIdentity(candidate domain.Candidate, index int) string {
	if candidate.DocumentID != "" {
		return "doc:" + candidate.DocumentID
	}
	for _, key := range []string{"source", "filename", "title"} {
		if value, ok := candidate.Metadata[key]; ok {
			if name, ok := value.(string); ok && strings.TrimSpace(name) != "" {
				return "name:" + strings.ToLower(strings.TrimSpace(name))
			}
		}
	}
	return fmt.Sprintf("idx:%d", index)
}

func buildAnswerPrompt(question, history, contextBlocks string) string {
	historyBlock := ""
	if strings.TrimSpace(history) != "" {
		historyBlock = fmt.Sprintf("Conversation history:\n%s\n\n", strings.TrimSpace(history))
	}
	return fmt.Sprintf("%sContext:\n\n%s\n\nQuestion: %s", historyBlock, contextBlocks, question)
}

func fallbackAnswerFromSources(sources []domain.ContextSource, detail string) string {
	var snippets []string
	for _, source := range sources {
		snippet := strings.TrimSpace(strings.ReplaceAll(source.Snippet, "\n", " "))
		if snippet != "" {
			snippets = append(snippets, snippet)
		}
	}
	if len(snippets) == 0 {
		return fmt.Sprintf("LLM unavailable (%s). No retrieved content is available yet.", detail)
	}
	if len(snippets) > 3 {
		snippets = snippets[:3]
	}
	lines := make([]string, len(snippets))
	for i, snippet := range snippets {
		if cut := truncateChars(snippet, 220); cut != snippet {
			snippet = cut + "..."
		}
		lines[i] = "- " + snippet
	}
	return fmt.Sprintf(
		"LLM unavailable (%s). I could not generate a model answer. Top retrieved excerpts:\n%s",
		detail, strings.Join(lines, "\n"),
	)
}
