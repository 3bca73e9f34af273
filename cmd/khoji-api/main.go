package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/config"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/search"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	cfgFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "khoji-api",
		Short: "Khoji person search gateway",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(
		newSearchCommand(),
		newSignupCommand(),
		newLoginCommand(),
		newLogoutCommand(),
		newWhoamiCommand(),
	)
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("webhook-url", defaults.GetString("webhook.url"), "Search webhook URL")
	cmd.PersistentFlags().Int("webhook-timeout-ms", defaults.GetInt("webhook.timeout_ms"), "Search webhook timeout in milliseconds")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().Int("search-rate-per-minute", defaults.GetInt("search.rate_per_minute"), "Local search limit per minute (0 disables)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "webhook.url", "webhook-url")
	bindFlag(cmd, "webhook.timeout_ms", "webhook-timeout-ms")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "search.rate_per_minute", "search-rate-per-minute")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newSearchLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func newSearchClient(appConfig config.AppConfig, logger *zap.Logger) (*search.Client, error) {
	return search.NewClient(search.ClientConfig{
		Endpoint: appConfig.WebhookURL,
		Timeout:  appConfig.WebhookTimeout,
		Logger:   logger,
	})
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	userProfile, err := openProfile(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer userProfile.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "khoji-auth",
		Audience:      "khoji-api",
		TokenTTL:      appConfig.TokenTTL,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	searchClient, err := newSearchClient(appConfig, logger)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Searcher:       searchClient,
		Identity:       userProfile.Identity,
		TokenManager:   tokenManager,
		Logger:         logger,
		SearchLimiter:  newSearchLimiter(appConfig.SearchRatePerMinute),
		AllowedOrigins: appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("webhook", appConfig.WebhookURL),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
