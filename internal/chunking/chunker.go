package chunking

import (
	"fmt"
	"regexp"
)

// ChunkVersion identifies the chunking semantics. Bump it whenever boundaries
// produced for the same input could change, so stale documents get re-indexed.
const ChunkVersion = 1

const (
	DefaultMaxChars        = 1000
	DefaultOverlapSegments = 1
	DefaultPrefix          = "doc"
)

// Mode is the strategy that produced a chunk plan.
type Mode string

const (
	ModeFAQ     Mode = "faq"
	ModeGeneric Mode = "generic"
)

// Config controls chunk size, overlap and identity.
type Config struct {
	MaxChars        int
	OverlapSegments int
	Version         int
	Prefix          string
}

// DefaultConfig returns the production chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxChars:        DefaultMaxChars,
		OverlapSegments: DefaultOverlapSegments,
		Version:         ChunkVersion,
		Prefix:          DefaultPrefix,
	}
}

// ConfigError reports an invalid chunking configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunking config: %s %s", e.Field, e.Reason)
}

// Validate rejects configurations the assembler cannot honor.
func (c Config) Validate() error {
	if c.MaxChars <= 0 {
		return &ConfigError{Field: "max_chars", Reason: "must be positive"}
	}
	if c.OverlapSegments < 0 {
		return &ConfigError{Field: "overlap_segments", Reason: "cannot be negative"}
	}
	if c.Version < 1 {
		return &ConfigError{Field: "version", Reason: "must be at least 1"}
	}
	if c.Prefix == "" {
		return &ConfigError{Field: "prefix", Reason: "is required"}
	}
	return nil
}

// Strategy holds the locale-dependent heuristics used by a Chunker.
type Strategy struct {
	Sections         SectionDetector
	SentenceBoundary *regexp.Regexp
}

// DefaultStrategy detects numbered and "¿...?" FAQ headers and splits sentences
// before uppercase (including accented) letters and digits.
func DefaultStrategy() Strategy {
	return Strategy{
		Sections:         DefaultSectionDetector(),
		SentenceBoundary: sentenceBoundaryPattern,
	}
}

// Plan is the ordered list of chunk texts for one document.
type Plan struct {
	Mode  Mode     `json:"mode"`
	Texts []string `json:"chunks"`
}

// Chunk is one span of a document's normalized text.
type Chunk struct {
	SourceDocumentID string
	ChunkIndex       int
	ChunkCount       int
	Text             string
	Mode             Mode
}

// ID returns the chunk's index identity.
func (c Chunk) ID(prefix string) string {
	return ChunkID(prefix, c.SourceDocumentID, c.ChunkIndex, c.ChunkCount)
}

// Chunker splits documents into chunks. It is safe for concurrent use.
type Chunker struct {
	cfg      Config
	strategy Strategy
}

// Option customizes a Chunker.
type Option func(*Chunker)

// WithStrategy replaces the default section and sentence heuristics.
func WithStrategy(s Strategy) Option {
	return func(c *Chunker) {
		if s.Sections != nil {
			c.strategy.Sections = s.Sections
		}
		if s.SentenceBoundary != nil {
			c.strategy.SentenceBoundary = s.SentenceBoundary
		}
	}
}

// New validates cfg and builds a Chunker.
func New(cfg Config, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Chunker{cfg: cfg, strategy: DefaultStrategy()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the configuration the chunker was built with.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Split plans the chunks for text. FAQ-shaped text keeps one section per
// chunk; anything else is packed by size with overlap. The plan always holds
// at least one chunk, which may be empty when text is empty.
func (c *Chunker) Split(text string) Plan {
	if sections := c.strategy.Sections.DetectSections(text); sections != nil {
		texts := assembleChunks(sections, c.cfg.MaxChars, c.cfg.OverlapSegments, true, c.strategy.SentenceBoundary)
		if len(texts) > 0 {
			return Plan{Mode: ModeFAQ, Texts: texts}
		}
	}

	paragraphs := MergeLabelParagraphs(SplitParagraphs(text))
	texts := assembleChunks(paragraphs, c.cfg.MaxChars, c.cfg.OverlapSegments, false, c.strategy.SentenceBoundary)
	if len(texts) == 0 {
		texts = []string{Normalize(text)}
	}
	return Plan{Mode: ModeGeneric, Texts: texts}
}

// Chunks splits text and attaches document identity to every chunk.
func (c *Chunker) Chunks(documentID, text string) ([]Chunk, Mode) {
	plan := c.Split(text)
	chunks := make([]Chunk, len(plan.Texts))
	for i, t := range plan.Texts {
		chunks[i] = Chunk{
			SourceDocumentID: documentID,
			ChunkIndex:       i,
			ChunkCount:       len(plan.Texts),
			Text:             t,
			Mode:             plan.Mode,
		}
	}
	return chunks, plan.Mode
}
