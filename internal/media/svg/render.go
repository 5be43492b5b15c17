package svg

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Source is an SVG file as handed over by file resolution.
type Source struct {
	Content    []byte
	Extension  string
	Identifier string
	ModTime    int64
}

// Resolver turns a path-like reference or a direct handle into a Source.
type Resolver interface {
	Resolve(ctx context.Context, ref string, handle *Source, treatIDAsReference bool) (Source, error)
}

// EmbedInput carries the arguments of an inline embed: a reference or a
// handle to the file plus the presentation attributes for the root.
type EmbedInput struct {
	Src                string
	Image              *Source
	TreatIDAsReference bool
	Presentation
}

type Option func(*Pipeline)

// WithMaxBytes rejects sources larger than n bytes. Zero disables the limit.
func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) {
		p.maxBytes = n
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// Pipeline holds the stateless parts of inline rendering. Sessions created
// from it own their cache.
type Pipeline struct {
	resolver Resolver
	maxBytes int64
	log      zerolog.Logger
}

func NewPipeline(resolver Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) NewSession() *Session {
	return p.WithCache(NewCache())
}

// WithCache returns a session backed by an existing cache, for callers that
// render several items in one session.
func (p *Pipeline) WithCache(cache *Cache) *Session {
	return &Session{pipeline: p, cache: cache}
}

type Session struct {
	pipeline *Pipeline
	cache    *Cache
}

func (s *Session) Cache() *Cache {
	return s.cache
}

// Embed resolves the requested file and renders it inline.
func (s *Session) Embed(ctx context.Context, in EmbedInput) (string, error) {
	if in.Src == "" && in.Image == nil {
		return "", inputError(ErrMissingSource, nil)
	}
	if s.pipeline.resolver == nil {
		return "", inputError(ErrResolve, nil)
	}

	source, err := s.pipeline.resolver.Resolve(ctx, in.Src, in.Image, in.TreatIDAsReference)
	if err != nil {
		s.pipeline.log.Debug().Err(err).Str("src", in.Src).Msg("resolve svg source failed")
		return "", inputError(ErrResolve, nil)
	}

	return s.Render(source, in.Presentation)
}

// Render turns source into sanitized root markup carrying the normalized
// presentation attributes. Content that does not parse as an svg document
// renders as "" without an error.
func (s *Session) Render(source Source, p Presentation) (string, error) {
	ext := strings.TrimPrefix(source.Extension, ".")
	if !strings.EqualFold(ext, "svg") {
		return "", inputError(ErrNotSVGFile, nil)
	}
	if len(source.Content) == 0 {
		return "", inputError(ErrEmptySource, nil)
	}
	if limit := s.pipeline.maxBytes; limit > 0 && int64(len(source.Content)) > limit {
		return "", inputError(ErrTooLarge, nil)
	}

	identifier := source.Identifier
	if identifier == "" {
		identifier = ContentIdentifier(source.Content)
	}

	attrs := Normalize(p)
	key := CacheKey(identifier, source.ModTime, attrs)

	return s.cache.GetOrCompute(key, func() string {
		return s.pipeline.render(source, attrs)
	}), nil
}

func (p *Pipeline) render(source Source, attrs *Attributes) string {
	doc, err := Parse(source.Content)
	if err != nil {
		p.log.Debug().
			Err(err).
			Bool("not_svg_root", errors.Is(err, ErrNotSVGRoot)).
			Str("source", source.Identifier).
			Msg("svg not renderable")
		return ""
	}

	Sanitize(doc)

	markup, err := Serialize(doc, attrs)
	if err != nil {
		p.log.Error().Err(err).Str("source", source.Identifier).Msg("serialize svg failed")
		return ""
	}
	return markup
}
