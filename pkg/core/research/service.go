// Package research exposes the filings core to external collaborators such
// as an orchestration or conversational layer. Its operations follow an
// "error as data" convention: they always return something displayable, with
// transport failures flattened into error-marker values rather than Go
// errors. Callers that need typed errors should use the underlying packages
// directly.
package research

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"filingsresearch/pkg/core/chunk"
	"filingsresearch/pkg/core/cik"
	"filingsresearch/pkg/core/config"
	"filingsresearch/pkg/core/extract"
	"filingsresearch/pkg/core/fetch"
	"filingsresearch/pkg/core/filings"
)

// FilingResult is one located filing. A non-empty Error marks the whole
// lookup as failed; such a result is the only element of its list.
type FilingResult struct {
	Title      string `json:"title,omitempty"`
	FilingDate string `json:"filing_date,omitempty"`
	Link       string `json:"link,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Service wires the core packages together behind the collaborator-facing
// operations.
type Service struct {
	ciks      *cik.Resolver
	locator   *filings.Locator
	extractor *extract.Extractor
	cache     *TextCache
	logger    *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCIKResolver replaces the CIK resolver (used in tests).
func WithCIKResolver(r *cik.Resolver) ServiceOption {
	return func(s *Service) { s.ciks = r }
}

// WithLocator replaces the filing locator (used in tests).
func WithLocator(l *filings.Locator) ServiceOption {
	return func(s *Service) { s.locator = l }
}

// WithExtractor replaces the text extractor (used in tests).
func WithExtractor(e *extract.Extractor) ServiceOption {
	return func(s *Service) { s.extractor = e }
}

// WithCache replaces the extraction cache (used in tests).
func WithCache(c *TextCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// NewService builds the full research stack from configuration: one shared
// fetch client, the resolvers and extractor on top of it, and the optional
// on-disk extraction cache.
func NewService(cfg *config.Config, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := fetch.NewClient(cfg.UserAgent, cfg.Fetch, logger,
		fetch.WithRateLimit(cfg.RatePerSecond))

	s := &Service{
		ciks:      cik.NewResolver(client, logger),
		locator:   filings.NewLocator(client, logger),
		extractor: extract.NewExtractor(client, nil, logger),
		cache:     NewTextCache(cfg.CacheDir),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindCIK looks up registrants by company name or ticker. Transport failure
// is logged and presented as an empty list; callers always get a renderable
// value.
func (s *Service) FindCIK(ctx context.Context, name string) []cik.Registrant {
	regs, err := s.ciks.FindRegistrant(ctx, name)
	if err != nil {
		s.logger.Warn("CIK lookup failed", zap.String("query", name), zap.Error(err))
		return []cik.Registrant{}
	}
	return regs
}

// FindFilings locates up to count filings of the given form type for a CIK.
// Zero matches yields an empty list; transport failure yields a single
// error-marker element so the two cases stay distinguishable.
func (s *Service) FindFilings(ctx context.Context, cikNum, filingType string, count int) []FilingResult {
	refs, err := s.locator.Find(ctx, cikNum, filingType, count)
	if err != nil {
		s.logger.Warn("filing lookup failed",
			zap.String("cik", cikNum), zap.String("form", filingType), zap.Error(err))
		return []FilingResult{{Error: fmt.Sprintf("Error fetching filings: %v", err)}}
	}

	results := make([]FilingResult, 0, len(refs))
	for _, ref := range refs {
		results = append(results, FilingResult{
			Title:      ref.Title,
			FilingDate: ref.FilingDate,
			Link:       ref.Link,
		})
	}
	return results
}

// SummarizeFiling returns one chunk of a filing's extracted text. chunkIndex
// -1 returns a metadata string describing the chunk layout; an index outside
// the valid range returns an explanatory message. The extracted text is
// cached on disk so subsequent chunk requests skip the fetch.
func (s *Service) SummarizeFiling(ctx context.Context, filingURL string, chunkIndex, maxChunkSize int) string {
	text := s.cache.Get(filingURL)
	if text == "" {
		res, err := s.extractor.ExtractText(ctx, filingURL)
		if err != nil {
			s.logger.Warn("filing fetch failed", zap.String("url", filingURL), zap.Error(err))
			return fmt.Sprintf("Error: could not fetch filing at %s: %v", filingURL, err)
		}
		text = res.Text
		if !res.Degraded {
			if err := s.cache.Set(filingURL, text); err != nil {
				s.logger.Warn("cache write failed", zap.String("url", filingURL), zap.Error(err))
			}
		}
	}

	out, err := chunk.Slice(text, chunkIndex, maxChunkSize)
	if err != nil {
		var oor *chunk.OutOfRangeError
		if errors.As(err, &oor) {
			return fmt.Sprintf("Invalid chunk_index %d. Valid indexes are 0 to %d, or -1 for chunk metadata.",
				oor.Index, oor.Total-1)
		}
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}
