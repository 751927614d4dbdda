package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/jarvis/internal/app"
	"github.com/ent0n29/jarvis/internal/config"
	"github.com/ent0n29/jarvis/internal/logging"
	"github.com/ent0n29/jarvis/internal/memory"
)

const backgroundNotice = "Running in background. Say the wake word to interact."

// flags holds command line overrides. Only flags the user set are applied.
type flags struct {
	noAudio    bool
	dryRun     bool
	dbDir      string
	logFile    string
	debug      bool
	background bool
	wakeWord   bool
	wakeToken  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Jarvis conversational assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd, f, app.Terminal{In: in, Out: out})
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.BoolVar(&f.noAudio, "no-audio", false, "print responses instead of speaking them")
	pf.BoolVar(&f.dryRun, "dry-run", false, "simulate backend responses without network calls")
	pf.StringVar(&f.dbDir, "db-dir", "", "memory store location (overrides JARVIS_CHROMA_DIR)")
	pf.StringVar(&f.logFile, "log-file", "", "also write logs to this file")
	pf.BoolVar(&f.debug, "debug", false, "enable debug logging")
	root.Flags().BoolVar(&f.background, "background", false, "wait for the wake word instead of greeting")
	root.Flags().BoolVar(&f.wakeWord, "wake-word", false, "enable wake-word activation (same as --background)")
	pf.StringVar(&f.wakeToken, "wake-token", "", "word that wakes the assistant (overrides JARVIS_WAKE_WORD)")

	root.AddCommand(newServeCmd(f), newMemoryCmd(f), newConfigCmd())
	return root
}

// loadConfig reads the environment, then applies flags the user passed.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	changed := cmd.Flags().Changed
	if changed("no-audio") && f.noAudio {
		cfg.AudioEnabled = false
	}
	if changed("dry-run") && f.dryRun {
		cfg.SimulateResponses = true
	}
	if changed("db-dir") {
		cfg.MemoryStorePath = f.dbDir
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if changed("debug") && f.debug {
		cfg.LogLevel = "debug"
	}
	if changed("wake-token") {
		cfg.WakeWord = f.wakeToken
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func buildApp(cmd *cobra.Command, f *flags, console bool) (*app.BuildResult, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: console})
	if err != nil {
		return nil, err
	}
	built, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return built, nil
}

func shutdown(b *app.BuildResult) {
	if err := b.Cleanup(); err != nil {
		b.Logger.Warn("cleanup failed", zap.Error(err))
	}
	_ = b.Logger.Sync()
}

func runConsole(cmd *cobra.Command, f *flags, term app.Terminal) error {
	b, err := buildApp(cmd, f, true)
	if err != nil {
		return err
	}
	defer shutdown(b)

	g, ctx := errgroup.WithContext(cmd.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error { return b.Orchestrator.Serve(ctx, b.Requests) })

	front := b.Frontend(term)
	defer front.Close()

	g.Go(func() error {
		defer cancel()
		if !f.background && !f.wakeWord {
			return front.Console.RunInteractive(ctx)
		}
		front.Speaker.Speak(backgroundNotice)
		err := b.WakeSupervisor(front).Run(ctx)
		front.Speaker.Speak("Shutting down background listener.")
		return err
	})
	return g.Wait()
}

func newServeCmd(f *flags) *cobra.Command {
	var wake bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := buildApp(cmd, f, false)
			if err != nil {
				return err
			}
			defer shutdown(b)

			httpServer := &http.Server{
				Addr:    b.Config.BindAddr,
				Handler: b.API().Router(),
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return b.Orchestrator.Serve(ctx, b.Requests) })
			if wake {
				front := b.Frontend(app.Terminal{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()})
				defer front.Close()
				g.Go(func() error { return b.WakeSupervisor(front).Run(ctx) })
			}
			g.Go(func() error {
				b.Logger.Info("server listening", zap.String("addr", b.Config.BindAddr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen error: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				b.Logger.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), b.Config.ShutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					b.Logger.Warn("graceful shutdown failed", zap.Error(err))
					_ = httpServer.Close()
				}
				return nil
			})

			err = g.Wait()
			b.Logger.Info("shutdown complete")
			return err
		},
	}
	cmd.Flags().BoolVar(&wake, "wake", false, "also listen for the wake word on stdin")
	return cmd
}

func newMemoryCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Export or import long-term memories",
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write every stored memory as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := buildApp(cmd, f, false)
			if err != nil {
				return err
			}
			defer shutdown(b)

			records, err := b.Memory.Export(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				file, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer file.Close()
				w = file
			}
			return memory.WriteJSON(w, records)
		},
	}
	export.Flags().StringVar(&outPath, "out", "-", "destination file, - for stdout")

	var inPath string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Add memories from a JSON export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := buildApp(cmd, f, false)
			if err != nil {
				return err
			}
			defer shutdown(b)

			r := cmd.InOrStdin()
			if inPath != "" && inPath != "-" {
				file, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("open %s: %w", inPath, err)
				}
				defer file.Close()
				r = file
			}
			records, err := memory.ReadJSON(r)
			if err != nil {
				return err
			}
			n, err := b.Memory.Import(cmd.Context(), records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d memories\n", n)
			return nil
		},
	}
	imp.Flags().StringVar(&inPath, "in", "-", "source file, - for stdin")

	cmd.AddCommand(export, imp)
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "List recognized settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, o := range config.Describe() {
				fmt.Fprintf(tw, "%s\t%s\n", o.Key, o.Effect)
			}
			return tw.Flush()
		},
	}
}
