package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/api"
	"github.com/chenBenjamin97/robot-scout/pkg/store"
	"github.com/chenBenjamin97/robot-scout/pkg/video"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	loggerLevel = logger.LevelInfo
	configFile  string

	rootCmd = &cobra.Command{
		Use:   "scout [source]",
		Short: "Detects FRC robots in a match video or live stream and labels them with their alliance",
		Args:  cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(loggerLevel)
			logrus.SetLevel(xlogrus.LevelToLogrus(loggerLevel))
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", loggerLevel)
		},
		RunE:         run,
		SilenceUsage: true,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.Var(&loggerLevel, "log-level", "logging level (trace, debug, info, warning, error)")
	flags.StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	flags.Bool("live", false, "the source is a live stream, reconnect when it drops")
	flags.String("resolver", "streamlink", "live stream resolver: streamlink or static")
	flags.Bool("show", false, "display the annotated frames, 'q' or ESC quits")
	flags.String("output", "", "write the annotated frames to this video file")
	flags.String("http-addr", "", "serve the HTTP API on this address, e.g. ':8080'")
	flags.String("record", "", "record the observations in this SQLite file")

	for key, flag := range map[string]string{
		"source.live":     "live",
		"source.resolver": "resolver",
		"scout.show":      "show",
		"scout.output":    "output",
		"http.addr":       "http-addr",
		"recorder.path":   "record",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("unable to bind flag '%s': %v", flag, err))
		}
	}
}

func main() {
	ll := xlogrus.DefaultLogrusLogger()
	l := xlogrus.New(ll).WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf(ctx, "unable to load .env: %v", err)
	}

	err := rootCmd.ExecuteContext(ctx)
	belt.Flush(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configFile, args)
	if err != nil {
		return err
	}

	classifier, err := video.NewClassifier(cfg.Classifier)
	if err != nil {
		return err
	}

	//teardown runs in reverse order, every failure is reported
	var closers []func() error
	defer func() {
		var result *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			result = multierror.Append(result, closers[i]())
		}
		if teardownErr := result.ErrorOrNil(); teardownErr != nil {
			logger.Errorf(ctx, "teardown: %v", teardownErr)
			if err == nil {
				err = teardownErr
			}
		}
	}()

	tracker, err := video.StartTracker(ctx, cfg.Tracker)
	if err != nil {
		return err
	}
	closers = append(closers, tracker.Close)

	sinks := []video.Sink{}
	var tracks api.TrackReporter
	sessionID := ""
	if cfg.Recorder.Path != "" {
		recorder, err := store.Open(ctx, cfg.Recorder.Path, cfg.Source.URL)
		if err != nil {
			return err
		}
		closers = append(closers, recorder.Close)
		sinks = append(sinks, recorder)
		tracks = recorder
		sessionID = recorder.SessionID()
		logger.Infof(ctx, "recording session %s to '%s'", sessionID, cfg.Recorder.Path)
	}

	if cfg.HTTP.Addr != "" {
		state := api.NewState(sessionID)
		hub := api.NewHub()
		go hub.Run(ctx)
		sinks = append(sinks, state, hub)

		server := &http.Server{
			Addr:        cfg.HTTP.Addr,
			Handler:     api.SetRouter(state, hub, tracks),
			BaseContext: func(net.Listener) context.Context { return ctx },
		}
		go func() {
			logger.Infof(ctx, "serving the API on '%s'", cfg.HTTP.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf(ctx, "http server: %v", err)
			}
		}()
		closers = append(closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	source := video.NewFrameSource(video.SourceDescriptor{URL: cfg.Source.URL, Live: cfg.Source.Live}, cfg.Source.sourceOptions()...)
	closers = append(closers, source.Close)
	if err := source.Open(ctx); err != nil {
		if !source.Live() {
			return err
		}
		logger.Warnf(ctx, "live source is not available yet, will keep trying: %v", err)
	}

	scout := video.NewScout(source, tracker, classifier, cfg.Scout, sinks...)
	if err := scout.Run(ctx); err != nil {
		return err
	}

	stats := source.Stats()
	logger.Infof(ctx, "done: %d frames read, %d opens (%d failed), %d reconnects", stats.Frames, stats.Opens, stats.FailedOpens, stats.Reconnects)
	return nil
}
