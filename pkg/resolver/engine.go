package resolver

import (
	"context"
	"fmt"
	"iter"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/locator"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/metrics"
)

// EngineConfig holds the defaults applied when Options leave a value unset
type EngineConfig struct {
	MaxGatewayAttempts  int
	PerAttemptTimeout   time.Duration
	MetadataTimeout     time.Duration
	MaxDirectoryGuesses int
	MaxDepth            int
}

// DefaultEngineConfig returns the limits used when nothing is configured
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxGatewayAttempts:  5,
		PerAttemptTimeout:   6 * time.Second,
		MetadataTimeout:     10 * time.Second,
		MaxDirectoryGuesses: 48,
		MaxDepth:            3,
	}
}

// Engine turns raw asset locators into displayable URLs
type Engine struct {
	registry *gateway.Registry
	prober   *gateway.Prober
	metadata *MetadataResolver
	guesser  DirectoryGuesser
	cache    *ResolutionCache
	metrics  *metrics.Metrics
	config   EngineConfig

	group singleflight.Group
}

// NewEngine wires a resolution engine. cache and m may be nil.
func NewEngine(registry *gateway.Registry, prober *gateway.Prober, client *http.Client, cache *ResolutionCache, m *metrics.Metrics, config EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if config.PerAttemptTimeout <= 0 {
		config.PerAttemptTimeout = defaults.PerAttemptTimeout
	}
	if config.MetadataTimeout <= 0 {
		config.MetadataTimeout = defaults.MetadataTimeout
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = defaults.MaxDepth
	}

	e := &Engine{
		registry: registry,
		prober:   prober,
		metadata: NewMetadataResolver(client, config.MetadataTimeout),
		guesser:  NewDirectoryGuesser(),
		cache:    cache,
		metrics:  m,
		config:   config,
	}
	e.metadata.engine = e
	return e
}

// Metadata returns the engine's metadata resolver
func (e *Engine) Metadata() *MetadataResolver {
	return e.metadata
}

// Registry returns the mirror registry the engine fans out over
func (e *Engine) Registry() *gateway.Registry {
	return e.registry
}

// Resolve resolves raw into a displayable URL. Network problems never surface as errors:
// it returns ErrMalformedInput, or ctx.Err() once the caller stops waiting. Exhaustion is
// Failed in strict mode and a best-effort Resolved otherwise, as long as some HTTP URL was
// attempted.
func (e *Engine) Resolve(ctx context.Context, raw string, opts Options) (Result, error) {
	if strings.TrimSpace(raw) == "" {
		return Result{}, fmt.Errorf("%w: empty locator", ErrMalformedInput)
	}

	tokenID := opts.TokenID
	if tokenID == nil {
		tokenID = new(big.Int)
	}
	tokenKey, err := locator.HexTokenID(tokenID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	if cached, ok := e.cache.Get(ctx, raw, tokenKey); ok {
		return cached.withMode(opts.Strict), nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// Concurrent callers for the same key share one resolution. The shared work outlives
	// a caller that gives up and still fills the cache; every network step in it is
	// individually time-bounded.
	ch := e.group.DoChan(raw+"|"+tokenKey, func() (any, error) {
		workCtx := context.WithoutCancel(ctx)
		start := time.Now()

		res := e.resolve(workCtx, raw, tokenID, opts)

		e.metrics.ObserveResolution(string(res.Status), string(res.Strategy), time.Since(start))
		e.cache.Put(workCtx, raw, tokenKey, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		return r.Val.(Result).withMode(opts.Strict), nil
	}
}

func (e *Engine) resolve(ctx context.Context, raw string, tokenID *big.Int, opts Options) Result {
	r, err := e.newRun(tokenID, opts)
	if err != nil {
		return Result{Status: StatusFailed}
	}

	l := locator.Normalize(raw)
	expanded, err := locator.Expand(l, tokenID)
	if err != nil {
		return Result{Status: StatusFailed}
	}

	out, ok := r.resolve(ctx, expanded)
	if ok {
		logging.Logger.Debug("Resolved asset locator",
			zap.String("locator", raw),
			zap.String("url", out.url),
			zap.String("strategy", string(out.strategy)),
			zap.Int("attempts", r.attempts))
		return Result{Status: StatusResolved, URL: out.url, Strategy: out.strategy, Attempts: r.attempts}
	}

	logging.Logger.Info("Asset locator did not resolve",
		zap.String("locator", raw),
		zap.String("kind", string(expanded.Kind)),
		zap.String("fallback_url", r.lastURL),
		zap.Int("attempts", r.attempts))
	return Result{
		Status:      StatusFailed,
		FallbackURL: r.lastURL,
		Strategy:    strategyFor(expanded),
		Attempts:    r.attempts,
	}
}

func strategyFor(l locator.AssetLocator) Strategy {
	switch {
	case l.IsDataURI():
		return StrategyInline
	case l.Kind == locator.KindMetadata:
		return StrategyMetadata
	case l.Kind == locator.KindDirectory:
		return StrategyDirectory
	}
	return StrategyDirect
}

func (e *Engine) newRun(tokenID *big.Int, opts Options) (*run, error) {
	if tokenID == nil {
		tokenID = new(big.Int)
	}
	if _, err := locator.HexTokenID(tokenID); err != nil {
		return nil, err
	}

	r := &run{
		engine:      e,
		tokenID:     tokenID,
		maxAttempts: e.config.MaxGatewayAttempts,
		timeout:     e.config.PerAttemptTimeout,
		dead:        make(map[string]bool),
		documents:   make(map[string]bool),
		directories: make(map[string]bool),
	}
	if opts.MaxGatewayAttempts > 0 {
		r.maxAttempts = opts.MaxGatewayAttempts
	}
	if opts.PerAttemptTimeout > 0 {
		r.timeout = opts.PerAttemptTimeout
	}
	return r, nil
}

// outcome is a resolved URL and the path that produced it
type outcome struct {
	url      string
	strategy Strategy
}

// guessVerdict is the verdict on one guessed file name in a directory
type guessVerdict int

const (
	guessMissing guessVerdict = iota
	guessFound
	// guessEmptyDocument means a metadata document was found but yields no image
	guessEmptyDocument
)

// run is the state of a single resolution. It is never shared between calls.
type run struct {
	engine      *Engine
	tokenID     *big.Int
	maxAttempts int
	timeout     time.Duration

	// dead holds mirrors that failed at the network level; they are not tried again in this run
	dead        map[string]bool
	documents   map[string]bool
	directories map[string]bool
	depth       int
	attempts    int
	lastURL     string
}

func (r *run) resolve(ctx context.Context, l locator.AssetLocator) (outcome, bool) {
	if l.IsDataURI() {
		return outcome{url: l.Path, strategy: StrategyInline}, true
	}
	if l.Path == "" {
		return outcome{}, false
	}

	switch l.Kind {
	case locator.KindMetadata:
		return r.metadata(ctx, l)
	case locator.KindDirectory:
		return r.directory(ctx, l)
	}
	return r.direct(ctx, l)
}

// direct probes each candidate for media. A JSON answer is an unexpected metadata layer and is followed.
func (r *run) direct(ctx context.Context, l locator.AssetLocator) (outcome, bool) {
	for c := range r.candidates(l) {
		res := r.probe(ctx, c)
		switch res.Classification {
		case gateway.ClassImage:
			return outcome{url: res.FinalURL, strategy: StrategyDirect}, true
		case gateway.ClassJSONDocument:
			if u, ok := r.followCandidate(ctx, c); ok {
				return outcome{url: u, strategy: StrategyMetadata}, true
			}
			return outcome{}, false
		}
	}
	return outcome{}, false
}

// metadata fetches the document itself rather than probing it, since mirrors mislabel JSON
func (r *run) metadata(ctx context.Context, l locator.AssetLocator) (outcome, bool) {
	for c := range r.candidates(l) {
		doc, ok := r.fetch(ctx, c)
		if !ok {
			continue
		}
		if gateway.Classify(doc.StatusCode, doc.ContentType) == gateway.ClassImage {
			return outcome{url: doc.URL, strategy: StrategyDirect}, true
		}
		// Every mirror serves the same bytes for a content path; one parsed answer is enough
		if u, ok := r.document(ctx, doc); ok {
			return outcome{url: u, strategy: StrategyMetadata}, true
		}
		return outcome{}, false
	}
	return outcome{}, false
}

// directory first reads a ".../metadata" path as a document, then guesses inside the directory
func (r *run) directory(ctx context.Context, l locator.AssetLocator) (outcome, bool) {
	if !strings.HasSuffix(l.Path, "/") {
		if out, ok := r.metadata(ctx, l); ok {
			return out, true
		}
	}
	return r.walkDirectory(ctx, l.Directory())
}

// walkDirectory tries metadata names then image names until one resolves or the guess budget runs out
func (r *run) walkDirectory(ctx context.Context, dir locator.AssetLocator) (outcome, bool) {
	if r.directories[dir.Path] {
		return outcome{}, false
	}
	r.directories[dir.Path] = true

	g := r.engine.guesser
	metaNames := g.MetadataFilenames(r.tokenID)
	names := append(metaNames, g.CandidateFilenames(r.tokenID)...)
	budget := r.engine.config.MaxDirectoryGuesses

	tried := 0
	skipMetadata := false
	for i, name := range names {
		isMetadata := i < len(metaNames)
		if isMetadata && skipMetadata {
			continue
		}
		if budget > 0 && tried >= budget {
			break
		}
		tried++

		out, verdict := r.guess(ctx, dir.Join(name), isMetadata)
		switch verdict {
		case guessFound:
			return out, true
		case guessEmptyDocument:
			skipMetadata = true
		}
	}
	return outcome{}, false
}

// guess walks the mirrors for one guessed file: a 404 moves on to the next name,
// a mirror-level failure moves on to the next mirror
func (r *run) guess(ctx context.Context, l locator.AssetLocator, isMetadata bool) (outcome, guessVerdict) {
	for c := range r.candidates(l) {
		res := r.probe(ctx, c)

		switch {
		case res.Classification == gateway.ClassImage:
			return outcome{url: res.FinalURL, strategy: StrategyDirectory}, guessFound

		case res.Classification == gateway.ClassJSONDocument:
			if u, ok := r.followCandidate(ctx, c); ok {
				return outcome{url: u, strategy: StrategyDirectory}, guessFound
			}
			return outcome{}, guessEmptyDocument

		case res.Classification == gateway.ClassNetworkError:
			continue

		case res.StatusCode >= 200 && res.StatusCode <= 299:
			// Answered with something that is not media; bare metadata names are often mislabeled
			if isMetadata {
				if u, ok := r.followCandidate(ctx, c); ok {
					return outcome{url: u, strategy: StrategyDirectory}, guessFound
				}
			}
			return outcome{}, guessMissing

		case res.StatusCode == http.StatusNotFound, res.StatusCode == http.StatusGone:
			return outcome{}, guessMissing
		}
	}
	return outcome{}, guessMissing
}

// followCandidate fetches a single URL as a metadata document and resolves it
func (r *run) followCandidate(ctx context.Context, c gateway.Candidate) (string, bool) {
	doc, ok := r.fetch(ctx, c)
	if !ok {
		return "", false
	}
	if gateway.Classify(doc.StatusCode, doc.ContentType) == gateway.ClassImage {
		return doc.URL, true
	}
	return r.document(ctx, doc)
}

// document extracts and resolves a fetched document's image. A document without one falls
// through to directory guessing when its URL looks like a directory.
func (r *run) document(ctx context.Context, doc *Document) (string, bool) {
	if r.documents[doc.URL] {
		return "", false
	}
	r.documents[doc.URL] = true

	fields, err := ParseDocument(doc.Body)
	if err != nil {
		logging.Logger.Debug("Metadata document is not JSON, treating it as having no image",
			zap.String("url", doc.URL),
			zap.Error(err))
	}

	if value, ok := ExtractImage(fields); ok {
		return r.value(ctx, value, doc.URL)
	}

	if locator.IsDirectoryURL(doc.URL) {
		out, ok := r.walkDirectory(ctx, locator.Normalize(doc.URL).Directory())
		return out.url, ok
	}
	return "", false
}

// value resolves an image reference found in a document at docURL
func (r *run) value(ctx context.Context, value, docURL string) (string, bool) {
	target := locator.Normalize(value)
	if target.IsDataURI() {
		return target.Path, true
	}

	if target.Scheme == locator.SchemeUnknown {
		base, err := url.Parse(docURL)
		if err != nil {
			return "", false
		}
		ref, err := url.Parse(target.Path)
		if err != nil {
			return "", false
		}
		target = locator.Normalize(base.ResolveReference(ref).String())
		if target.Scheme == locator.SchemeUnknown {
			return "", false
		}
	}

	if target.Scheme == locator.SchemeHTTP {
		return target.Path, true
	}

	if r.depth >= r.engine.config.MaxDepth {
		logging.Logger.Debug("Metadata nesting too deep, giving up on layer",
			zap.String("value", value),
			zap.Int("depth", r.depth))
		return "", false
	}

	expanded, err := locator.Expand(target, r.tokenID)
	if err != nil {
		return "", false
	}

	r.depth++
	defer func() { r.depth-- }()

	out, ok := r.resolve(ctx, expanded)
	return out.url, ok
}

// candidates yields the candidates for l that are still worth an attempt in this run
func (r *run) candidates(l locator.AssetLocator) iter.Seq[gateway.Candidate] {
	return func(yield func(gateway.Candidate) bool) {
		n := 0
		for c := range r.engine.registry.Candidates(l) {
			if c.Mirror != nil && r.dead[c.Mirror.Name] {
				continue
			}
			if r.maxAttempts > 0 && n >= r.maxAttempts {
				return
			}
			n++
			if !yield(c) {
				return
			}
		}
	}
}

func (r *run) probe(ctx context.Context, c gateway.Candidate) gateway.ProbeResult {
	r.note(c)
	res := r.engine.prober.Probe(ctx, c, r.timeout)
	if res.Classification == gateway.ClassNetworkError && c.Mirror != nil {
		r.dead[c.Mirror.Name] = true
	}
	return res
}

// fetch reports false for transport failures and non-2xx answers
func (r *run) fetch(ctx context.Context, c gateway.Candidate) (*Document, bool) {
	r.note(c)
	health := r.engine.registry.Health()

	doc, err := r.engine.metadata.Fetch(ctx, c)
	if err != nil {
		if doc == nil && c.Mirror != nil {
			r.dead[c.Mirror.Name] = true
			health.RecordFailure(c.Mirror.Name)
		}
		logging.Logger.Debug("Metadata fetch failed",
			zap.String("url", c.URL),
			zap.String("mirror", c.MirrorName()),
			zap.Error(err))
		return nil, false
	}

	if c.Mirror != nil {
		if gateway.MirrorFault(doc.StatusCode) {
			health.RecordFailure(c.Mirror.Name)
		} else {
			health.RecordSuccess(c.Mirror.Name)
		}
	}
	if doc.StatusCode < 200 || doc.StatusCode > 299 {
		return nil, false
	}
	return doc, true
}

// note records an attempt; only HTTP URLs are kept as the best-effort fallback
func (r *run) note(c gateway.Candidate) {
	r.attempts++
	if strings.HasPrefix(c.URL, "http://") || strings.HasPrefix(c.URL, "https://") {
		r.lastURL = c.URL
	}
}
