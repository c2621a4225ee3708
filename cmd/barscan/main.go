package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/barscan"
	"github.com/bft-labs/barscan/internal/cliconfig"
	"github.com/bft-labs/barscan/pkg/log"
	"github.com/bft-labs/barscan/pkg/scanner"
	"github.com/bft-labs/barscan/plugins/configwatcher"
	"github.com/bft-labs/barscan/plugins/metrics"
)

const helpBanner = `
 _
| |__   __ _ _ __ ___  ___ __ _ _ __
| '_ \ / _' | '__/ __|/ __/ _' | '_ \
| |_) | (_| | |  \__ \ (_| (_| | | | |
|_.__/ \__,_|_|  |___/\___\__,_|_| |_|
`

const helpDescription = `
Decode barcodes from camera frames and still images with a licensed
WebAssembly decoding engine.

Highlights:
  - One engine per process, loaded once and shared by every scan.
  - Watches a frames directory for captured images, single-shot or continuous.
  - Decodes PNG, JPEG, BMP, GIF and WebP files directly.
  - Configure via file, env (BARSCAN_*), or flags.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  barscan preload --engine-resource-path ./engine
  barscan decode label.png receipt.jpg --barcode-types QR_CODE
  barscan scan --frames-dir /var/spool/frames --scan-mode continuous
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration into subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  zerolog.Logger
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig(), logger: zerolog.New(os.Stderr)}

	root := &cobra.Command{
		Use:           "barscan",
		Short:         "Decode barcodes from camera frames and still images",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.barscan/config.toml)")
	pf.StringVar(&a.cfg.LicenseKey, "license-key", a.cfg.LicenseKey, "engine license key (empty uses the trial license)")
	pf.StringVar(&a.cfg.EngineResourcePath, "engine-resource-path", a.cfg.EngineResourcePath, "directory, file or URL of the engine runtime")
	pf.StringVar(&a.cfg.Language, "language", a.cfg.Language, "display language (english, chinese or a BCP 47 tag)")
	pf.StringVar(&a.cfg.BarcodeTypes, "barcode-types", a.cfg.BarcodeTypes, "barcode types to decode (all or one symbology such as QR_CODE)")
	pf.DurationVar(&a.cfg.LoadTimeout, "load-timeout", a.cfg.LoadTimeout, "engine runtime load timeout")
	pf.DurationVar(&a.cfg.HTTPTimeout, "http-timeout", a.cfg.HTTPTimeout, "engine runtime download timeout")
	pf.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9090)")
	pf.BoolVar(&a.cfg.WatchConfig, "watch-config", a.cfg.WatchConfig, "apply license changes from the config file while running")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(a.preloadCmd(), a.decodeCmd(), a.scanCmd())

	if err := root.Execute(); err != nil {
		a.logger.Error().Err(err).Msg("barscan")
		os.Exit(1)
	}
}

// load resolves configuration: flags > env > file > defaults.
func (a *app) load(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
		a.cfgPath = cfgFile
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}

	logger, err := cliconfig.Logger(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// newScanner validates cfg and builds a scanner with the CLI's plugins.
func (a *app) newScanner(cfg cliconfig.Config, reload chan<- struct{}, opts ...barscan.Option) (*barscan.Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a.logger.Info().Interface("config", cfg.Masked()).Msg("configuration")

	opts = append([]barscan.Option{
		barscan.WithLogger(log.NewZerologAdapterWithLogger(a.logger)),
	}, opts...)
	if cfg.MetricsAddr != "" {
		opts = append(opts, metrics.WithMetrics(metrics.Config{Addr: cfg.MetricsAddr}))
	}
	if cfg.WatchConfig && a.cfgPath != "" {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
			Path: a.cfgPath,
			OnReloadRequired: func(error) {
				select {
				case reload <- struct{}{}:
				default:
				}
			},
		}))
	}

	s, err := barscan.New(cfg.Scanner(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	return s, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func (a *app) preloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preload",
		Short: "Load the engine runtime and report how long it took",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg := a.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := log.NewZerologAdapterWithLogger(a.logger)

			start := time.Now()
			if err := barscan.Preload(ctx, cfg.LicenseKey, cfg.EngineResourcePath, barscan.WithLogger(logger)); err != nil {
				return fmt.Errorf("preload: %w", err)
			}
			if st, ok := barscan.EngineState(); ok {
				a.logger.Info().
					Str("phase", st.Phase.String()).
					Dur("elapsed", time.Since(start)).
					Msg("engine ready")
			}
			return nil
		},
	}
}

func (a *app) decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <image>...",
		Short: "Decode barcodes from image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg := a.cfg
			cfg.DecodeMode = string(barscan.DecodeImage)
			s, err := a.newScanner(cfg, nil)
			if err != nil {
				return err
			}
			if err := s.Start(ctx); err != nil {
				return fmt.Errorf("%s: %w", s.View().Error, err)
			}
			defer s.Stop(context.Background())

			var failed int
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					a.logger.Error().Err(err).Str("file", path).Msg("read image")
					failed++
					continue
				}
				text, err := s.DecodeImage(ctx, data, "")
				if err != nil {
					a.logger.Warn().Str("file", path).Str("reason", s.View().Error).Msg("decode failed")
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, text)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan barcodes from frames written to a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg := a.cfg
			if cfg.FramesDir == "" {
				return errors.New("--frames-dir is required")
			}
			if cfg.DecodeMode == string(barscan.DecodeImage) {
				return errors.New("scan needs decode mode scan or both")
			}

			detected := make(chan string, 16)
			reload := make(chan struct{}, 1)
			out := cmd.OutOrStdout()
			s, err := a.newScanner(cfg, reload,
				barscan.WithOutput(barscan.OutputFunc(func(text string) {
					fmt.Fprintln(out, text)
					select {
					case detected <- text:
					default:
					}
				})),
				barscan.WithEventHandler(&statusPrinter{logger: a.logger}),
			)
			if err != nil {
				return err
			}

			if err := s.Start(ctx); err != nil {
				return fmt.Errorf("%s: %w", s.View().Error, err)
			}
			defer s.Stop(context.Background())
			a.logger.Info().Str("frames_dir", cfg.FramesDir).Msg(s.View().Status)

			single := cfg.ScanMode == scanner.DefaultScanMode
			for {
				select {
				case <-ctx.Done():
					a.logger.Info().Msg("received signal, stopping...")
					return nil
				case <-detected:
					if single {
						return nil
					}
				case <-reload:
					a.logger.Warn().Msg("license change requires reload, reloading engine")
					if err := s.Reload(ctx, nil); err != nil {
						return fmt.Errorf("reload: %w", err)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&a.cfg.FramesDir, "frames-dir", a.cfg.FramesDir, "directory the camera writes frames to")
	cmd.Flags().StringVar(&a.cfg.ScanMode, "scan-mode", a.cfg.ScanMode, "single or continuous")
	cmd.Flags().StringVar(&a.cfg.DecodeMode, "decode-mode", a.cfg.DecodeMode, "scan or both")
	return cmd
}

// statusPrinter logs capture session failures.
type statusPrinter struct {
	scanner.BaseEventHandler
	logger zerolog.Logger
}

func (p *statusPrinter) OnSessionStatus(e scanner.SessionStatusEvent) {
	if e.Err != nil {
		p.logger.Error().Err(e.Err).Str("session", e.SessionID).Msg("capture failed")
		return
	}
	p.logger.Debug().Str("session", e.SessionID).Str("status", e.Current.String()).Msg("capture status")
}
