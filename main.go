package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/config"
	"github.com/odvcencio/meacode/host"
	"github.com/odvcencio/meacode/intellisense"
	"github.com/odvcencio/meacode/telemetry"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	telemetry *telemetry.Recorder
	local     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{log: zerolog.Nop()}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		a.telemetry.Record(err, map[string]any{"args": os.Args[1:]})
		fmt.Fprintf(os.Stderr, "meacode: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meacode",
		Short:         "MeaCode editor host and session tools",
		Version:       host.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(cmd, cwd)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = newLogger(os.Stderr, cfg.LogLevel)
			if cfg.File != "" {
				a.log.Debug().Str("file", cfg.File).Msg("config loaded")
			}
			if dir, err := a.configDir(); err == nil {
				a.telemetry = telemetry.New(filepath.Join(dir, telemetry.FileName), telemetry.WithLogger(a.log))
			}
			return nil
		},
	}
	config.InitFlags(root)
	root.PersistentFlags().BoolVar(&a.local, "local", false, "run host commands in-process instead of dialing host_url")

	root.AddCommand(
		a.serveCmd(),
		a.termCmd(),
		a.askCmd(),
		a.suggestCmd(),
		a.tabsCmd(),
		a.statusCmd(),
		a.infoCmd(),
	)
	return root
}

// newLogger writes human-readable output to terminals and JSON otherwise.
func newLogger(w *os.File, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = w
	if term.IsTerminal(int(w.Fd())) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func (a *app) configDir() (string, error) {
	if a.cfg != nil && a.cfg.ConfigDir != "" {
		return a.cfg.ConfigDir, nil
	}
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "meacode"), nil
}

func (a *app) hostConfig() host.Config {
	cfg := a.cfg
	return host.Config{
		Workspace:      cfg.Workspace,
		ConfigDir:      cfg.ConfigDir,
		Shell:          cfg.Exec.Shell,
		ExecTimeout:    cfg.Exec.Timeout,
		SandboxTimeout: cfg.Sandbox.Timeout,
		Node:           cfg.Sandbox.Node,
		Dev:            host.Version == "dev",
		AI: host.AIConfig{
			APIKey:    cfg.AI.APIKey,
			BaseURL:   cfg.AI.BaseURL,
			Model:     cfg.AI.Model,
			RateLimit: cfg.AI.RateLimit,
			Burst:     cfg.AI.Burst,
		},
	}
}

// newCache builds the IntelliSense cache from the cache settings.
func (a *app) newCache() *intellisense.Cache {
	return intellisense.New(
		intellisense.WithTTL(a.cfg.Cache.TTL),
		intellisense.WithMaxSize(a.cfg.Cache.MaxSize),
		intellisense.WithCleanupInterval(a.cfg.Cache.CleanupInterval),
		intellisense.WithLogger(a.log),
	)
}

// connect dials the host at host_url. With --local, or when no host
// answers, an in-process handler serves the calls.
func (a *app) connect(ctx context.Context) (bridge.Invoker, func() error, error) {
	if !a.local {
		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		ws, err := bridge.DialWS(dialCtx, a.cfg.HostURL, a.log)
		cancel()
		if err == nil {
			a.log.Debug().Str("url", a.cfg.HostURL).Msg("connected to host")
			return ws, ws.Close, nil
		}
		a.log.Debug().Err(err).Str("url", a.cfg.HostURL).Msg("host unreachable, running in-process")
	}
	opts := []host.Option{host.WithLogger(a.log), host.WithCache(a.newCache())}
	if interactive() {
		opts = append(opts, host.WithDialogs(ptermDialogs{workspace: a.workspace()}))
	}
	h := host.New(a.hostConfig(), opts...)
	return h, h.Close, nil
}

// workspace is the configured workspace or the working directory.
func (a *app) workspace() string {
	if a.cfg.Workspace != "" {
		if abs, err := filepath.Abs(a.cfg.Workspace); err == nil {
			return abs
		}
		return a.cfg.Workspace
	}
	cwd, _ := os.Getwd()
	return cwd
}
