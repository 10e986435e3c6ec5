// Package bootstrap wires the process together: configuration, logging,
// observability, the model runtime, the one engine instance, and the HTTP
// server, then runs until terminated.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	"asr-webservice-go/internal/domain/engine"
	"asr-webservice-go/internal/domain/eventbus"
	"asr-webservice-go/internal/domain/model"
	platformconfig "asr-webservice-go/internal/platform/config"
	platformerrors "asr-webservice-go/internal/platform/errors"
	platformlogging "asr-webservice-go/internal/platform/logging"
	platformobservability "asr-webservice-go/internal/platform/observability"
	httptransport "asr-webservice-go/internal/transport/http"
	httpasr "asr-webservice-go/internal/transport/http/asr"

	// Engine variants register themselves with the factory.
	_ "asr-webservice-go/internal/domain/engine/fasterwhisper"
	_ "asr-webservice-go/internal/domain/engine/whisper"
	_ "asr-webservice-go/internal/domain/engine/whisperx"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>ASR API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

// Options carries the CLI overrides applied on top of the loaded config.
type Options struct {
	Host string
	Port int
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	options               Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	runtime               model.Runtime
	engine                engine.Engine
}

// Run starts the full service lifecycle: configuration, dependencies,
// serving, and graceful shutdown.
func Run(ctx context.Context, options Options) error {
	state := &appState{options: options}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.engine == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"engine not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WarnTag("BOOT", "observability did not shut down cleanly: %v", err)
			}
		}()
	}
	defer eventbus.Shutdown()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, groupCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("BOOT", "service stopped cleanly")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "initialisation order")
	for _, step := range steps {
		logger.InfoTag("BOOT", "  %s", step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the initialisation steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup",
			Title:     "Set up observability hooks",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "events:subscribe",
			Title:     "Subscribe lifecycle event listeners",
			DependsOn: []string{"logging:init", "observability:setup"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   subscribeEventsStep,
		},
		{
			ID:        "runtime:init",
			Title:     "Initialise model runtime",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindEngineConstruction,
			Execute:   initRuntimeStep,
		},
		{
			ID:        "engine:create",
			Title:     "Construct transcription engine",
			DependsOn: []string{"runtime:init"},
			Kind:      platformerrors.KindEngineConstruction,
			Execute:   createEngineStep,
		},
		{
			ID:        "docs:register",
			Title:     "Register API documentation",
			DependsOn: []string{"engine:create"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   registerDocsStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path

	if state.options.Host != "" {
		state.config.Server.Host = state.options.Host
	}
	if state.options.Port > 0 {
		state.config.Server.Port = state.options.Port
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return err
	}
	state.logger = logger
	state.slogger = logger.Slog()

	if state.configPath != "" {
		logger.InfoTag("BOOT", "configuration loaded from %s", state.configPath)
	} else {
		logger.InfoTag("BOOT", "no configuration file found, using defaults and environment")
	}
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	shutdown, err := platformobservability.Setup(ctx, platformobservability.Config{
		Enabled: state.config.Observability.Enabled,
	}, state.slogger)
	if err != nil {
		return err
	}
	state.observabilityShutdown = shutdown
	return nil
}

func subscribeEventsStep(_ context.Context, state *appState) error {
	if err := eventbus.RegisterListeners(state.logger); err != nil {
		return err
	}
	state.logger.InfoTag("BOOT", "lifecycle event listeners subscribed")
	return nil
}

func initRuntimeStep(_ context.Context, state *appState) error {
	runtime, err := model.New(state.config.Runtime, state.config.ASR.Model)
	if err != nil {
		return err
	}
	state.runtime = runtime
	state.logger.InfoTag("BOOT", "model runtime ready (%s)", state.config.Runtime.Type)
	return nil
}

func createEngineStep(_ context.Context, state *appState) error {
	eng, err := engine.Create(state.config.ASR.Engine, engine.Deps{
		Config:  &state.config.ASR,
		Runtime: state.runtime,
		Logger:  state.logger,
	})
	if err != nil {
		return err
	}
	state.engine = eng

	caps := eng.Capabilities()
	state.logger.InfoTag("ENGINE", "active engine %s (vad=%t word_ts=%t diarization=%t)",
		caps.Name, caps.VADFilter, caps.WordTimestamps, caps.Diarization)
	return nil
}

func registerDocsStep(_ context.Context, state *appState) error {
	return httpasr.RegisterDocs(
		state.engine.Capabilities(),
		state.config.ASR.Diarization.HFToken != "",
	)
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httptransport.APIResponse{
			Success: false,
			Data:    gin.H{},
			Message: "not found",
			Code:    http.StatusNotFound,
		})
	})

	asrService, err := httpasr.NewService(config, logger, state.engine)
	if err != nil {
		logger.ErrorTag("BOOT", "transcription service init failed: %v", err)
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "asr:new-service", "failed to create transcription service", err)
	}
	if err := asrService.Register(groupCtx, router); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "asr:register-routes", "failed to register transcription routes", err)
	}

	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("DOCS", "failed to read OpenAPI document: %v", err)
			c.JSON(http.StatusInternalServerError, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{"error": err.Error()},
				Message: "failed to generate openapi spec",
				Code:    http.StatusInternalServerError,
			})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	httpServer := &http.Server{
		Addr:    net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port)),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "serving on http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "interactive docs at http://%s/docs", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server shut down gracefully")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	groupCtx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	// Wake on a signal or on the first service failure, whichever comes first.
	select {
	case <-ctx.Done():
		logger.InfoTag("BOOT", "shutdown requested (%v), cleaning up", context.Cause(ctx))
	case <-groupCtx.Done():
		logger.WarnTag("BOOT", "a service stopped, cleaning up")
	}

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		timeoutErr := errors.New("shutdown timed out")
		logger.ErrorTag("BOOT", "shutdown timed out, forcing exit")
		return timeoutErr
	}
	return nil
}
