package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/browser"
	"github.com/dtnitsch/web-locator/pkg/caching"
	dbpkg "github.com/dtnitsch/web-locator/pkg/db"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/engine"
	"github.com/dtnitsch/web-locator/pkg/fetcher"
	"github.com/dtnitsch/web-locator/pkg/pagination"
	"github.com/dtnitsch/web-locator/pkg/parser"
	"github.com/dtnitsch/web-locator/pkg/storage"
	"github.com/urfave/cli/v2"
)

// pageCapturer renders live pages. *browser.Capturer is the one Setup wires.
type pageCapturer interface {
	Capture(ctx context.Context, pageURL string) (*dom.Snapshot, error)
	Close() error
}

// Env is what every action needs: config, logger, page loading and output.
type Env struct {
	Config models.Config
	Logger *slog.Logger
	Format string
	Fields string
	Out    io.Writer

	// DetectLanguage fills the document language at load.
	DetectLanguage bool

	cache    *caching.Cache
	fetcher  *fetcher.Fetcher
	capturer pageCapturer
	storage  *storage.Storage
	dbPath   string
}

// Setup reads the global flags and config file.
func Setup(c *cli.Context) (*Env, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if w := c.Int("viewport-width"); w > 0 {
		cfg.Viewport.Width = w
	}
	if h := c.Int("viewport-height"); h > 0 {
		cfg.Viewport.Height = h
	}
	if d := c.String("cache-dir"); d != "" {
		cfg.Cache.Dir = d
	}
	if p := c.String("db"); p != "" {
		cfg.DB.Path = p
	}

	env := &Env{
		Config:  cfg,
		Logger:  NewLogger(c.Bool("quiet"), c.Bool("verbose")),
		Format:  c.String("format"),
		Fields:  c.String("select"),
		Out:     os.Stdout,
		fetcher: fetcher.NewFetcher(cfg.Browser.Timeout),
		storage: &storage.Storage{},
		dbPath:  cfg.DB.Path,

		DetectLanguage: true,
	}
	if !c.Bool("no-cache") {
		cache, err := caching.NewCache(cfg.Cache.Dir, cfg.Cache.MaxAge)
		if err != nil {
			env.Logger.Warn("page cache disabled", "error", err)
		} else {
			env.cache = cache
		}
	}
	if c.Bool("live") {
		headless := cfg.Browser.Headless == nil || *cfg.Browser.Headless
		env.capturer = browser.New(browser.Config{
			RemoteURL: cfg.Browser.RemoteURL,
			Headless:  headless,
			Timeout:   cfg.Browser.Timeout,
			Width:     cfg.Viewport.Width,
			Height:    cfg.Viewport.Height,
			Logger:    env.Logger,
		})
	}
	return env, nil
}

// NewEnv returns an environment without a page cache, browser or language
// detection, writing output to out.
func NewEnv(cfg models.Config, logger *slog.Logger, out io.Writer) *Env {
	cfg.Defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Config:  cfg,
		Logger:  logger,
		Format:  "json",
		Out:     out,
		fetcher: fetcher.NewFetcher(cfg.Browser.Timeout),
		storage: &storage.Storage{},
		dbPath:  cfg.DB.Path,
	}
}

// Live reports whether pages are captured in a browser.
func (env *Env) Live() bool {
	return env.capturer != nil
}

// Close releases the browser, if one was started.
func (env *Env) Close() {
	if env.capturer != nil {
		_ = env.capturer.Close()
	}
}

// Print writes v in the selected format.
func (env *Env) Print(v interface{}) error {
	return Output(env.Out, env.Format, v, env.Fields)
}

// OpenDB opens the warm cache database.
func (env *Env) OpenDB() (*dbpkg.DB, error) {
	database, err := dbpkg.Open(env.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// Storage returns the report writer.
func (env *Env) Storage() *storage.Storage {
	return env.storage
}

// Cache returns the page cache, or nil when disabled.
func (env *Env) Cache() *caching.Cache {
	return env.cache
}

// NewEngine returns an engine configured from the environment.
func (env *Env) NewEngine() *engine.Engine {
	return engine.New(env.Config.Engine, env.Logger)
}

// Load turns a URL or a local file into a document. Live pages also yield
// a scroller for the captured tab.
func (env *Env) Load(ctx context.Context, arg string) (*dom.Document, pagination.Scroller, error) {
	if !IsURL(arg) {
		return env.loadFile(arg)
	}
	pageURL, err := ValidateURL(arg)
	if err != nil {
		return nil, nil, err
	}
	if env.capturer != nil {
		return env.loadLive(ctx, pageURL)
	}
	return env.loadStatic(ctx, pageURL)
}

func (env *Env) loadFile(path string) (*dom.Document, pagination.Scroller, error) {
	data, err := env.storage.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	doc, err := env.parse("file://"+filepath.ToSlash(abs), string(data))
	return doc, nil, err
}

func (env *Env) loadStatic(ctx context.Context, pageURL string) (*dom.Document, pagination.Scroller, error) {
	if env.cache != nil {
		if data, ok := env.cache.Get(pageURL, caching.VariantStatic); ok {
			env.Logger.Debug("page cache hit", "url", pageURL)
			doc, err := env.parse(pageURL, string(data))
			return doc, nil, err
		}
	}

	body, err := env.fetcher.GetHTML(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	if env.cache != nil {
		if err := env.cache.Set(pageURL, caching.VariantStatic, []byte(body)); err != nil {
			env.Logger.Warn("failed to cache page", "url", pageURL, "error", err)
		}
	}
	doc, err := env.parse(pageURL, body)
	return doc, nil, err
}

// loadLive serves a fresh snapshot from the page cache when one exists.
// A cached snapshot has no live tab behind it, so it comes without a
// scroller.
func (env *Env) loadLive(ctx context.Context, pageURL string) (*dom.Document, pagination.Scroller, error) {
	if env.cache != nil {
		if data, ok := env.cache.Get(pageURL, caching.VariantSnapshot); ok {
			var snap dom.Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				if doc, err := dom.FromSnapshot(&snap); err == nil {
					env.Logger.Debug("snapshot cache hit", "url", pageURL)
					return doc, nil, nil
				}
			}
			env.Logger.Warn("ignoring unreadable cached snapshot", "url", pageURL)
		}
	}

	snap, err := env.capturer.Capture(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	if env.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			if err := env.cache.Set(pageURL, caching.VariantSnapshot, data); err != nil {
				env.Logger.Warn("failed to cache snapshot", "url", pageURL, "error", err)
			}
		}
	}
	doc, err := dom.FromSnapshot(snap)
	if err != nil {
		return nil, nil, err
	}
	if bc, ok := env.capturer.(*browser.Capturer); ok {
		return doc, bc.Scroller(doc), nil
	}
	return doc, nil, nil
}

func (env *Env) parse(pageURL, src string) (*dom.Document, error) {
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{
		URL:            pageURL,
		HTML:           src,
		ViewportWidth:  env.Config.Viewport.Width,
		ViewportHeight: env.Config.Viewport.Height,
		DetectLanguage: env.DetectLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	env.Logger.Debug("page parsed", "url", pageURL, "title", doc.Title, "language", doc.Language)
	return doc, nil
}
