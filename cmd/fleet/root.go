package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeanpaul/fleet/internal/config"
	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/engine/local"
	"github.com/jeanpaul/fleet/internal/history"
	"github.com/jeanpaul/fleet/internal/logging"
	"github.com/jeanpaul/fleet/internal/skills"
	"github.com/jeanpaul/fleet/internal/subagent"
	"github.com/jeanpaul/fleet/internal/templates"
	"github.com/jeanpaul/fleet/internal/types"
)

const version = "0.1.0"

var (
	v          = viper.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "fleet",
	Short:         "Run coding sub-agents side by side",
	Long:          "fleet spawns template-driven coding sub-agents against an OpenAI-compatible model and tracks them live.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: ./config.yaml or ~/.config/fleet/config.yaml)")
	pf.String("provider", "", "provider name from the config")
	pf.String("model", "", "default model")
	pf.String("log-level", "", "debug, info, warn or error")
	_ = v.BindPFlag("default_provider", pf.Lookup("provider"))
	_ = v.BindPFlag("default_model", pf.Lookup("model"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every command builds from the configuration.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
	cwd       string
	templates *templates.Loader
	skills    *skills.FSResolver
	history   *history.Store
}

// newApp loads config and logging. quiet keeps logs off the terminal unless
// a log file is configured, so a full-screen UI is not corrupted.
func newApp(quiet bool) (*app, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	var fallback io.Writer = os.Stderr
	if quiet {
		fallback = io.Discard
	}
	log, closer, err := logging.Setup(cfg.Log.Level, cfg.Log.File, fallback)
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("working directory: %w", err)
	}
	return &app{
		cfg:       cfg,
		log:       log,
		logCloser: closer,
		cwd:       cwd,
		templates: templates.NewLoader(cwd, cfg.Templates.AgentsDir, cfg.Templates.Globs),
		skills:    skills.NewFSResolver(cfg.Skills.Dirs...),
	}, nil
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("close history", "err", err)
		}
	}
	a.logCloser.Close()
}

func (a *app) openHistory() error {
	if a.cfg.History.Path == "" || a.history != nil {
		return nil
	}
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return err
	}
	a.history = store
	return nil
}

// engine builds a local engine. ctl backs the sub-agent tools of parent
// sessions and may be nil.
func (a *app) engine(ctl types.SubAgentController) *local.Engine {
	p := a.cfg.Provider()
	return local.New(local.Options{
		Completer:          local.WithRetry(local.NewOpenAICompleter(p.BaseURL, p.APIKey), 3),
		SubAgents:          ctl,
		DisallowedCommands: a.cfg.Tools.DisallowedCommands,
		Logger:             a.log,
	})
}

func (a *app) manager(eng engine.Engine) *subagent.Manager {
	if err := a.openHistory(); err != nil {
		a.log.Warn("history disabled", "err", err)
	}
	opts := subagent.Options{
		Engine:        eng,
		Templates:     a.templates,
		Skills:        a.skills,
		MaxConcurrent: a.cfg.SubAgents.MaxConcurrent,
		Logger:        a.log,
	}
	if a.history != nil {
		opts.Recorder = a.history
	}
	return subagent.NewManager(opts)
}

// parentConfig is the session configuration sub-agents inherit from.
func (a *app) parentConfig(subAgents bool) engine.Config {
	return engine.Config{
		Cwd:      a.cwd,
		Model:    a.cfg.DefaultModel,
		MaxTurns: a.cfg.MaxTurns,
		Features: engine.Features{SubAgents: subAgents, Skills: true},
	}
}
