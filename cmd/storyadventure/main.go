package main

import (
	"context"
	"flag"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/yearone-io/story-adventure/internal/config"
	"github.com/yearone-io/story-adventure/internal/infrastructure/providers"
	"github.com/yearone-io/story-adventure/internal/present/rest"
	"github.com/yearone-io/story-adventure/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	conf, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	if conf.Server.EnableTrace {
		shutdown, err := telemetry.Setup(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to set up tracing")
		}
		defer func() {
			if err := shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("trace shutdown failed")
			}
		}()
	}

	cl := providers.NewClient(conf, logger)

	backends, err := providers.NewBackends(conf)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect ledger backends")
	}

	resolver, err := providers.NewNetworkResolver(conf, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build network resolver")
	}

	gen := providers.NewGenerator(conf, cl, logger)
	story := providers.NewStoryUsecase(conf, backends, resolver, cl, gen, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("story-adventure"))
	}

	handler := rest.NewHandler(story, gen, cl, conf.DefaultChainID)
	handler.RegisterRoutes(e)

	listen := conf.Server.Listen
	if listen == "" {
		listen = ":8000"
	}
	logger.Info().Str("listen", listen).Msg("starting server")
	e.Logger.Fatal(e.Start(listen))
}
