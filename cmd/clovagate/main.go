package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clovagate/internal/channel"
	"clovagate/internal/config"
	"clovagate/internal/provider"
	"clovagate/internal/signer"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "clovagate",
		Short: "clovagate: signed relay gateway for a CLOVA-style chatbot backend",
		Long:  "clovagate serves a browser chat page and relays messages to a chatbot backend, signing every request with HMAC-SHA256.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.clovagate/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(signCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file when it exists, otherwise falls back to
// environment-only configuration.
func loadConfig() (*config.Config, error) {
	path := config.ExpandPath(resolveConfigPath())
	if _, err := os.Stat(path); os.IsNotExist(err) && configPath == "" {
		logger.Info("no config file, using environment", "path", path)
		return config.FromEnv()
	}
	return config.Load(path)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			logger.Info("set provider.endpoint and CLOVAGATE_PROVIDER_SECRET_KEY before serving")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: parseLogLevel(cfg.Server.LogLevel),
			}))

			clova, err := provider.NewClova(provider.ClovaConfig{
				Endpoint:        cfg.Provider.Endpoint,
				SecretKey:       cfg.Provider.SecretKey,
				SignatureHeader: cfg.Provider.SignatureHeader,
				Timeout:         cfg.Provider.Timeout(),
				Logger:          logger,
			})
			if err != nil {
				return err
			}

			web := channel.NewWeb(channel.WebConfig{
				Host:       cfg.Server.Host,
				Port:       cfg.Server.Port,
				TrustProxy: cfg.Server.TrustProxy,
				Metrics:    cfg.Metrics.Enabled,
				Forwarder:  clova,
				Logger:     logger,
				Version:    version,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return web.Start(ctx)
		},
	}
}

func signCmd() *cobra.Command {
	var key, bodyFile string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a request body and print the signature header",
		Long:  "Reads a request body from -body or stdin, computes the HMAC-SHA256 digest, and prints the header line. Useful for curl debugging.",
		RunE: func(cmd *cobra.Command, args []string) error {
			header := config.DefaultSignatureHeader
			if key == "" {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("no -key given and config unusable: %w", err)
				}
				key = cfg.Provider.SecretKey
				header = cfg.Provider.SignatureHeader
			}

			var body []byte
			var err error
			if bodyFile != "" {
				body, err = os.ReadFile(bodyFile)
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			sig, err := signer.New(key).Sign(body)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", header, sig)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "secret key (default: from config)")
	cmd.Flags().StringVar(&bodyFile, "body", "", "file containing the request body (default: stdin)")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and probe the chatbot backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config: ok")

			clova, err := provider.NewClova(provider.ClovaConfig{
				Endpoint:        cfg.Provider.Endpoint,
				SecretKey:       cfg.Provider.SecretKey,
				SignatureHeader: cfg.Provider.SignatureHeader,
				Timeout:         cfg.Provider.Timeout(),
				Logger:          logger,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := clova.Healthy(ctx); err != nil {
				return fmt.Errorf("backend probe failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "backend: reachable")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "clovagate", version)
		},
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
