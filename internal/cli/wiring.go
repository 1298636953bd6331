package cli

import (
	"fmt"
	"time"

	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/delivery"
	"github.com/soyeahso/gewebridge/internal/gewe"
	"github.com/soyeahso/gewebridge/internal/hooks"
	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/soyeahso/gewebridge/internal/media"
	"github.com/soyeahso/gewebridge/internal/store"
	"github.com/soyeahso/gewebridge/internal/tempfs"
)

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel == "" {
		log = logging.NewStyled(cfg.Logging.Level, cfg.Logging.ConsoleStyle)
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

func newClient(cfg config.Config) (*gewe.Client, error) {
	timeout := time.Duration(cfg.Gewe.TimeoutSeconds) * time.Second
	client, err := gewe.NewClient(cfg.Gewe.BaseURL, cfg.Gewe.Token, cfg.Gewe.Proxy, timeout, log)
	if err != nil {
		return nil, err
	}
	client.SetAppID(cfg.Gewe.AppID)
	return client, nil
}

// openJournal returns nil when the journal is disabled. The caller closes db.
func openJournal(cfg config.Config) (*store.DB, *store.Journal, error) {
	if !cfg.Delivery.JournalEnabled() {
		return nil, nil, nil
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, fmt.Errorf("creating data dirs: %w", err)
	}
	db, err := store.Open(paths.Journal, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening journal: %w", err)
	}
	return db, store.NewJournal(db), nil
}

type pipelineDeps struct {
	provider delivery.Provider
	hooks    *hooks.Manager
	journal  *store.Journal
	metrics  *delivery.Metrics
}

func newPipeline(cfg config.Config, deps pipelineDeps) (*delivery.Pipeline, *tempfs.Manager, error) {
	// Relative temp dirs live under the data dir so `send` and `gateway`
	// agree on the root whatever directory they were started from.
	temp, err := tempfs.New(cfg.Media.TempRoot(paths.Base), log)
	if err != nil {
		return nil, nil, err
	}

	tools := media.ToolsFromConfig(cfg.Media)
	if missing := tools.Missing(); len(missing) > 0 {
		log.Warn().Strs("tools", missing).Msg("media tools not found; voice and video replies will fail")
	}

	opts := delivery.Options{
		Provider:        deps.provider,
		Media:           media.NewConverter(tools, nil, log),
		Temp:            temp,
		CallbackURL:     cfg.Gewe.CallbackURL,
		WorkDir:         paths.Base,
		SegmentMax:      cfg.Delivery.VoiceSegment(),
		Pace:            cfg.Delivery.VoicePace(),
		DownloadTimeout: cfg.Delivery.DownloadTimeout(),
		Hooks:           deps.hooks,
		Metrics:         deps.metrics,
		Logger:          log,
	}
	if deps.journal != nil {
		opts.Journal = deps.journal
	}

	p, err := delivery.NewPipeline(opts)
	if err != nil {
		return nil, nil, err
	}
	return p, temp, nil
}
