package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/de-tools/analytics-bridge/pkg/observability"
	"github.com/de-tools/analytics-bridge/pkg/server"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/crux"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/matomo"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/pagespeed"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/searchconsole"
	"github.com/de-tools/analytics-bridge/pkg/services/bridge"
	"github.com/de-tools/analytics-bridge/pkg/services/config"
	"github.com/de-tools/analytics-bridge/pkg/transport"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	cfgPath   string
	credsPath string
	debug     bool
	retries   uint64
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the analytics bridge web server",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a yaml/json/toml config file")
	rootCmd.Flags().StringVar(&credsPath, "credentials", "",
		"Path to an ini credentials file with one section per driver")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().Uint64Var(&retries, "retries", 0,
		"Retry failed remote calls and 5xx responses up to this many times (0 disables retries)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	source, err := config.Load(config.Options{ConfigFile: cfgPath, CredentialsFile: credsPath})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	timeout := transport.DefaultTimeout
	if raw := config.String(source, config.KeyTimeout, ""); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw, err)
		}
	}
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	trOpts := []transport.Option{
		transport.WithHTTPClient(httpClient),
		transport.WithDefaultTimeout(timeout),
		transport.WithMetrics(metrics),
	}
	if retries > 0 {
		trOpts = append(trOpts, transport.WithRetry(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)
		}))
	}
	tr := transport.New(trOpts...)
	auth := searchconsole.NewAuthenticator(httpClient)

	registry := analytics.NewRegistry()
	factories := map[string]analytics.Factory{
		matomo.Name:        matomo.Factory(tr),
		crux.Name:          crux.Factory(tr),
		pagespeed.Name:     pagespeed.Factory(tr),
		searchconsole.Name: searchconsole.Factory(auth),
	}
	for name, factory := range factories {
		if err := registry.Register(name, factory); err != nil {
			return fmt.Errorf("failed to register driver %s: %w", name, err)
		}
	}

	manager := bridge.NewManager(bridge.Dependencies{
		Source:        source,
		Registry:      registry,
		Transport:     tr,
		Authenticator: auth,
		Metrics:       metrics,
	})

	// resolve eagerly so a misconfigured driver fails at startup
	driverName := config.String(source, config.KeyDefaultDriver, config.DefaultDriver)
	if _, err := manager.Driver(ctx, driverName, nil); err != nil {
		return fmt.Errorf("failed to resolve analytics driver: %w", err)
	}

	logger.Info().Msgf("Registered drivers: %v", registry.ListDrivers())
	if credsPath != "" {
		profiles, err := config.Profiles(credsPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", credsPath).Msg("failed to list credential profiles")
		} else {
			logger.Info().Msgf("Credentials found at `%s` for: %v", credsPath, profiles)
		}
	}

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")

	if host == "" || port == "" {
		logger.Error().Msgf("Missing server configuration from .env file")
		os.Exit(1)
	}

	api := server.NewWebAPI(server.Config{
		Addr: net.JoinHostPort(host, port),
		Dependencies: server.Dependencies{
			Analytics: manager,
			Metrics:   metrics,
			Logger:    logger,
		},
	})

	return api.Start()
}
