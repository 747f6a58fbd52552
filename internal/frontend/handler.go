// Package frontend assembles pages: it renders the page object of the setup
// tree, fills the asset registry, caches the result and finishes the
// non-cacheable parts on every request.
package frontend

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/frontpage/internal/assets"
	"github.com/conneroisu/frontpage/internal/cobj"
	"github.com/conneroisu/frontpage/internal/document"
	ferrors "github.com/conneroisu/frontpage/internal/errors"
	"github.com/conneroisu/frontpage/internal/events"
	"github.com/conneroisu/frontpage/internal/locking"
	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/metrics"
	"github.com/conneroisu/frontpage/internal/nonce"
	"github.com/conneroisu/frontpage/internal/page"
	"github.com/conneroisu/frontpage/internal/pagecache"
	"github.com/conneroisu/frontpage/internal/sanitize"
	"github.com/conneroisu/frontpage/internal/tstree"
)

const tracerName = "github.com/conneroisu/frontpage/internal/frontend"

// NonceSubstitute is the permanent instruction target that swaps the nonce
// stored in a cached page for the nonce of the current request.
const NonceSubstitute = "nonce.substitute"

const (
	defaultCachePeriod = 24 * time.Hour
	defaultLockTimeout = 30 * time.Second
	maxResolveRounds   = 10
)

// Config holds the site settings of a Handler.
type Config struct {
	PublicDir    string
	TempDir      string
	Locale       document.Locale
	AbsRefPrefix string
	// CacheTTL applies when the setup does not set config.cache_period.
	CacheTTL    time.Duration
	LockTimeout time.Duration
}

// Options are the collaborators of a Handler. Nil fields get in-process
// defaults.
type Options struct {
	Setup     *tstree.Live
	Evaluator *cobj.Evaluator
	Cache     pagecache.Store
	Locker    locking.Locker
	Events    *events.Dispatcher
	Records   RecordSource
	Metrics   *metrics.Metrics
	Logger    logging.Logger
	// ErrorPage writes the response for a failed request.
	ErrorPage func(w http.ResponseWriter, r *http.Request, status int, err error)
}

// Request is one page request.
type Request struct {
	Host    string
	Path    string
	TypeNum int
	// Nonce is the CSP nonce of this request. A fresh one is created when
	// nil.
	Nonce *nonce.Nonce
	HTTP  *http.Request
}

// Response is a finished page.
type Response struct {
	Status int
	Header http.Header
	Body   string
	// FromCache is set when the page body came from the page cache.
	FromCache bool
}

// Handler is the page assembly orchestrator.
type Handler struct {
	cfg        Config
	setup      *tstree.Live
	eval       *cobj.Evaluator
	cache      pagecache.Store
	locker     locking.Locker
	events     *events.Dispatcher
	records    RecordSource
	sanitizer  *sanitize.Sanitizer
	files      fs.FS
	temp       *assets.TempFileWriter
	compressor *assets.Compressor
	metrics    *metrics.Metrics
	logger     logging.Logger
	tracer     trace.Tracer
	errorPage  func(w http.ResponseWriter, r *http.Request, status int, err error)
	now        func() time.Time
}

// NewHandler wires a Handler.
func NewHandler(cfg Config, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Setup == nil {
		opts.Setup = tstree.NewLive(tstree.New())
	}
	if opts.Evaluator == nil {
		opts.Evaluator = cobj.New(opts.Logger)
	}
	if opts.Cache == nil {
		opts.Cache = pagecache.NewMemoryStore(64<<20, defaultCachePeriod)
	}
	if opts.Locker == nil {
		opts.Locker = locking.NewMemoryLocker()
	}
	if opts.Events == nil {
		opts.Events = events.NewDispatcher()
	}
	if opts.Records == nil {
		opts.Records = SetupRecords{}
	}
	if opts.ErrorPage == nil {
		opts.ErrorPage = func(w http.ResponseWriter, _ *http.Request, status int, _ error) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCachePeriod
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.TempDir == "" {
		cfg.TempDir = "_assets"
	}
	logger := opts.Logger.WithComponent("frontend")

	h := &Handler{
		cfg:        cfg,
		setup:      opts.Setup,
		eval:       opts.Evaluator,
		cache:      opts.Cache,
		locker:     opts.Locker,
		events:     opts.Events,
		records:    opts.Records,
		sanitizer:  sanitize.New(cfg.PublicDir),
		files:      os.DirFS(cfg.PublicDir),
		temp:       assets.NewTempFileWriter(cfg.PublicDir, cfg.TempDir),
		compressor: assets.NewCompressor(cfg.PublicDir, cfg.TempDir, opts.Logger),
		metrics:    opts.Metrics,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		errorPage:  opts.ErrorPage,
		now:        time.Now,
	}
	h.eval.Register(NonceSubstitute, substituteNonce)
	return h
}

// Handle renders the page for req. On error no part of a response exists.
func (h *Handler) Handle(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := h.tracer.Start(ctx, "frontend.Handle", trace.WithAttributes(
		attribute.String("page.path", req.Path),
		attribute.Int("page.type", req.TypeNum),
	))
	defer span.End()
	start := h.now()

	resp, err := h.handle(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.metrics.Failed(errorCode(err))
		h.logger.Error(ctx, err, "page request failed", "path", req.Path, "type", req.TypeNum)
		return nil, err
	}

	mode := metrics.ModeGenerate
	if resp.FromCache {
		mode = metrics.ModeReplay
	}
	span.SetAttributes(attribute.Bool("page.cache_hit", resp.FromCache))
	h.metrics.Observe(mode, h.now().Sub(start))
	return resp, nil
}

func (h *Handler) handle(ctx context.Context, req *Request) (*Response, error) {
	setup := h.setup.Load()
	pageSetup, err := ResolvePageSetup(setup, req.TypeNum)
	if err != nil {
		return nil, err
	}

	rc, err := h.renderContext(setup, pageSetup, req)
	if err != nil {
		return nil, err
	}

	useCache := !rc.Config.Bool("no_cache")
	key := pagecache.Key(req.Host, req.Path, req.TypeNum, rc.Locale.Name())

	var cached *page.CachedPage
	if useCache {
		cached = h.lookup(ctx, key)
	}
	var lock locking.Lock
	if useCache && cached == nil {
		lockCtx, cancel := context.WithTimeout(ctx, h.cfg.LockTimeout)
		lock, err = h.locker.Acquire(lockCtx, key)
		cancel()
		if err != nil {
			return nil, ferrors.NewCacheError(ferrors.CodeInternal, "acquire generation lock", err)
		}
		// another request may have generated the page while we waited
		cached = h.lookup(ctx, key)
	}
	// locks are held only while the cacheable part is generated
	release := func() {
		if lock == nil {
			return
		}
		if err := lock.Release(ctx); err != nil {
			h.logger.Warn(ctx, err, "release generation lock failed", "key", key)
		}
		lock = nil
	}
	defer release()

	fromCache := cached != nil
	if fromCache {
		h.metrics.Hit()
		rc.IsGeneratePage = false
		rc.Content = cached.Content
		rc.Title = cached.Title
		rc.Uncached = cached.Instructions
		rc.Ext = cached.Ext
		rc.HasUncachedFragments = hasFragments(cached.Instructions)
	} else {
		if useCache {
			h.metrics.Miss()
		}
		if err := h.generate(ctx, rc); err != nil {
			return nil, err
		}
		h.metrics.Generated()
		cached = h.record(rc)
		if useCache {
			ttl := h.cachePeriod(rc)
			cached.Expires = cached.CreatedAt.Add(ttl)
			if err := h.cache.Set(ctx, key, cached, ttl); err != nil {
				h.logger.Warn(ctx, err, "store page in cache failed", "path", req.Path)
			}
		}
	}
	release()

	if rc.NeedsUncachedPass() {
		if err := h.renderUncached(ctx, rc); err != nil {
			return nil, err
		}
	}

	resp := &Response{
		Status:    http.StatusOK,
		Header:    make(http.Header),
		Body:      rc.Content,
		FromCache: fromCache,
	}
	if cached.Status != 0 {
		resp.Status = cached.Status
	}
	for name, values := range cached.Headers {
		resp.Header[name] = append([]string(nil), values...)
	}
	h.cacheHeaders(rc, cached, resp.Header)
	return resp, nil
}

// renderContext prepares the per-request state. The site config is merged
// with the config of the page object.
func (h *Handler) renderContext(setup, pageSetup *tstree.Node, req *Request) (*page.RenderContext, error) {
	rc := page.NewRenderContext(req.HTTP, req.Path, req.TypeNum)
	rc.Setup = setup
	rc.PageSetup = pageSetup
	rc.Config = setup.Child("config").Merge(pageSetup.Child("config"))
	rc.Locale = h.cfg.Locale
	if name := rc.Config.String("locale"); name != "" {
		if loc, err := document.ParseLocale(name); err == nil {
			rc.Locale = loc
		}
	}
	rc.AbsRefPrefix = rc.Config.StringDefault("absRefPrefix", h.cfg.AbsRefPrefix)
	rc.Data = h.records.Record(setup, req.Path)
	rc.Nonce = req.Nonce
	if rc.Nonce == nil {
		n, err := nonce.New()
		if err != nil {
			return nil, ferrors.NewInternalError(ferrors.CodeInternal, "create nonce", err)
		}
		rc.Nonce = n
	}
	return rc, nil
}

func (h *Handler) lookup(ctx context.Context, key string) *page.CachedPage {
	p, err := h.cache.Get(ctx, key)
	if err == nil {
		if verr := p.CheckVersion(); verr != nil {
			h.logger.Info(ctx, "regenerating page cached with another schema", "key", key, "reason", verr.Error())
			return nil
		}
		return p
	}
	if !errors.Is(err, pagecache.ErrMiss) {
		h.logger.Warn(ctx, err, "page cache lookup failed", "key", key)
	}
	return nil
}

// generate renders the cacheable page into rc.Content.
func (h *Handler) generate(ctx context.Context, rc *page.RenderContext) error {
	ctx, span := h.tracer.Start(ctx, "frontend.generate")
	defer span.End()
	rc.IsGeneratePage = true

	body, err := h.renderBody(ctx, rc)
	if err != nil {
		return err
	}

	if rc.Config.Bool("disableAllHeaderCode") {
		rc.Content = body
	} else {
		if err := h.populate(ctx, rc); err != nil {
			return err
		}
		rc.Assets.AddBodyContent("\n" + body)

		opts := h.renderOptions(rc)
		if rc.HasUncachedFragments {
			h.ensureDivKey(rc)
			snap := rc.Assets.Snapshot()
			coll := rc.Collector.Snapshot()
			rc.Ext.Assets = &snap
			rc.Ext.Collector = &coll
			rc.Content, err = rc.Assets.RenderWithUncachedObjects(ctx, rc.Ext.DivKey, opts)
		} else {
			rc.Content, err = rc.Assets.Render(ctx, opts)
		}
		if err != nil {
			return ferrors.NewRenderError(ferrors.CodeInternal, "render page", err)
		}
	}

	h.scheduleNonceSubstitution(rc)
	span.SetAttributes(attribute.Int("page.uncached", len(rc.Uncached)))
	return nil
}

// renderBody evaluates the page object and its top-level wrap and stdWrap.
func (h *Handler) renderBody(ctx context.Context, rc *page.RenderContext) (string, error) {
	body, err := h.eval.Render(ctx, rc, rc.PageSetup)
	if err != nil {
		return "", ferrors.NewRenderError(ferrors.CodeInternal, "render page content", err)
	}
	body = cobj.Wrap(body, rc.PageSetup.String("wrap"), rc.PageSetup.String("wrap.splitChar"))
	body, err = h.eval.StdWrap(ctx, rc, body, rc.PageSetup.Child("stdWrap"))
	if err != nil {
		return "", ferrors.NewRenderError(ferrors.CodeInternal, "render page content", err)
	}
	return body, nil
}

// scheduleNonceSubstitution adds the permanent nonce instruction once when
// the nonce ended up in the cacheable output.
func (h *Handler) scheduleNonceSubstitution(rc *page.RenderContext) {
	if rc.Nonce == nil || !rc.Nonce.Consumed() {
		return
	}
	for _, inst := range rc.Uncached {
		if inst.Permanent && inst.Target == NonceSubstitute {
			return
		}
	}
	rc.AddUncached(page.Instruction{
		Type:       page.InstructionFunc,
		Target:     NonceSubstitute,
		Parameters: map[string]string{"nonce": rc.Nonce.Value()},
		Permanent:  true,
	})
}

func substituteNonce(_ context.Context, c cobj.Call) (string, error) {
	old := c.Params["nonce"]
	if old == "" || c.RC == nil || c.RC.Nonce == nil || !strings.Contains(c.Content, old) {
		return c.Content, nil
	}
	return strings.ReplaceAll(c.Content, old, c.RC.Nonce.Consume()), nil
}

func (h *Handler) ensureDivKey(rc *page.RenderContext) {
	if rc.Ext.DivKey == "" {
		rc.Ext.DivKey = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
}

func (h *Handler) renderOptions(rc *page.RenderContext) assets.RenderOptions {
	prefix := rc.AbsRefPrefix
	return assets.RenderOptions{
		URL: func(ctx context.Context, path string) (string, error) {
			return h.events.PublicURL(ctx, path, prefix)
		},
		Nonce:      rc.Nonce,
		Files:      h.files,
		Compressor: h.compressor,
		Collector:  rc.Collector,
	}
}

// record builds the cache record of a freshly generated page.
func (h *Handler) record(rc *page.RenderContext) *page.CachedPage {
	status, header := h.staticHeaders(rc)
	if !rc.HasUncachedFragments {
		rc.Ext.Assets = nil
		rc.Ext.Collector = nil
	}
	return &page.CachedPage{
		Content:      rc.Content,
		Title:        rc.Title,
		Instructions: append([]page.Instruction(nil), rc.Uncached...),
		Ext:          rc.Ext,
		Status:       status,
		Headers:      header,
		CreatedAt:    h.now(),
	}
}

func (h *Handler) cachePeriod(rc *page.RenderContext) time.Duration {
	if secs := rc.Config.Int("cache_period", 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return h.cfg.CacheTTL
}

func hasFragments(insts []page.Instruction) bool {
	for _, inst := range insts {
		if !inst.Permanent {
			return true
		}
	}
	return false
}

func errorCode(err error) string {
	var pe *ferrors.PageError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ferrors.CodeInternal
}

// StatusFor maps a Handle error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, ferrors.ErrMalformedPageSetup) || errors.Is(err, ferrors.ErrPageNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
