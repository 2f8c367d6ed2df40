package qa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultK is the number of passages retrieved per question.
const DefaultK = 4

var (
	ErrInvalidK   = errors.New("k must be at least 1")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")
	ErrTimeout    = errors.New("deadline exceeded")
)

// Pipeline answers questions by retrieving passages, prompting the model
// with them and cleaning the completion. It holds no per-request state and
// can be shared by concurrent callers.
type Pipeline struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger

	defaultK          int
	retrievalTimeout  time.Duration
	generationTimeout time.Duration
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithDefaultK sets the k used by AnswerDefault. Values below 1 are ignored.
func WithDefaultK(k int) Option {
	return func(p *Pipeline) {
		if k >= 1 {
			p.defaultK = k
		}
	}
}

// WithTimeouts bounds the retrieval and generation calls. Zero disables the
// corresponding bound.
func WithTimeouts(retrieval, generation time.Duration) Option {
	return func(p *Pipeline) {
		p.retrievalTimeout = retrieval
		p.generationTimeout = generation
	}
}

func NewPipeline(retriever Retriever, generator Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever: retriever,
		generator: generator,
		logger:    zap.NewNop(),
		defaultK:  DefaultK,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve queries the index for the k passages nearest to question. The
// index's ordering is kept and its errors are returned unchanged.
func Retrieve(ctx context.Context, r Retriever, question string, k int) ([]Passage, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	return r.SimilaritySearch(ctx, question, k)
}

// AnswerDefault answers question using the pipeline's default k.
func (p *Pipeline) AnswerDefault(ctx context.Context, question string) (Answer, error) {
	return p.Answer(ctx, question, p.defaultK)
}

func (p *Pipeline) Answer(ctx context.Context, question string, k int) (Answer, error) {
	answer, _, err := p.AnswerWithSources(ctx, question, k)
	return answer, err
}

// AnswerWithSources is Answer that also returns the passages the prompt was
// grounded on.
func (p *Pipeline) AnswerWithSources(ctx context.Context, question string, k int) (Answer, []Passage, error) {
	if k < 1 {
		return Answer{}, nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	start := time.Now()
	passages, err := p.retrieve(ctx, question, k)
	if err != nil {
		return Answer{}, nil, err
	}
	p.logger.Debug("retrieved passages",
		zap.Int("k", k),
		zap.Int("count", len(passages)),
		zap.Duration("elapsed", time.Since(start)))

	prompt, err := RenderPrompt(FormatContext(passages), question)
	if err != nil {
		return Answer{}, passages, fmt.Errorf("render prompt: %w", err)
	}

	start = time.Now()
	raw, err := p.generate(ctx, prompt)
	if err != nil {
		return Answer{}, passages, err
	}
	p.logger.Debug("generated completion",
		zap.Int("promptBytes", len(prompt)),
		zap.Int("completionBytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)))

	return Answer{Text: CleanResponse(raw)}, passages, nil
}

func (p *Pipeline) retrieve(ctx context.Context, question string, k int) ([]Passage, error) {
	ctx, cancel := withTimeout(ctx, p.retrievalTimeout)
	defer cancel()

	passages, err := Retrieve(ctx, p.retriever, question, k)
	if err != nil {
		return nil, stageError(ctx, ErrRetrieval, err)
	}
	return passages, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.generationTimeout)
	defer cancel()

	raw, err := p.generator.Complete(ctx, prompt)
	if err != nil {
		return "", stageError(ctx, ErrGeneration, err)
	}
	return raw, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func stageError(ctx context.Context, kind, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", kind, ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
