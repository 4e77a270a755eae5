package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/docpub/internal/cfg"
	"github.com/simplesurance/docpub/internal/docsrepo"
	"github.com/simplesurance/docpub/internal/githubclt"
	"github.com/simplesurance/docpub/internal/logfields"
	"github.com/simplesurance/docpub/internal/provider/github"
	"github.com/simplesurance/docpub/internal/publish"
	"github.com/simplesurance/docpub/internal/releaseplan"
	"github.com/simplesurance/docpub/internal/sitebuilder"
)

const appName = "docpub"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

const githubAPITokenEnvVar = "DOCPUB_GITHUB_TOKEN"

const triggerChannelBufferSize = 64

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught, terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose         *bool
	ConfigFile      *string
	ShowVersion     *bool
	Ref             *string
	ReleasePlanFile *string
	DryRun          *bool
	Serve           *bool
	EnvFile         *string
}

var args arguments

const defConfigFile = "/etc/docpub/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the docpub configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
		Ref: pflag.String(
			"ref",
			"",
			"git ref, branch or tag to publish the documentation for",
		),
		ReleasePlanFile: pflag.String(
			"release-plan-file",
			"",
			"path to a release-plan JSON document produced by the release pipeline",
		),
		DryRun: pflag.Bool(
			"dry-run",
			false,
			"simulate all operations that would change the docs repository or github",
		),
		Serve: pflag.Bool(
			"serve",
			false,
			"run as a service, publishes are triggered via github release webhook events",
		),
		EnvFile: pflag.String(
			"env-file",
			"",
			"load environment variables from this file before reading credentials",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nBuild the documentation site and publish it to the docs repository.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *args.Ref != "" && *args.ReleasePlanFile != "" {
		fmt.Fprintln(os.Stderr, "ERROR: --ref and --release-plan-file are mutually exclusive")
		os.Exit(2)
	}
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration file", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustResolveReleaseContext(config *cfg.Config) *publish.ReleaseContext {
	if *args.ReleasePlanFile != "" {
		parser, err := releaseplan.NewParser(
			config.ReleasePlan.AnnouncementTagQuery,
			config.ReleasePlan.ImplicitTagQuery,
		)
		if err != nil {
			logger.Fatal(
				"could not parse the release-plan queries from the configuration file",
				logfields.Event("release_plan_query_parsing_failed"),
				zap.Error(err),
			)
		}

		plan, err := parser.ParseFile(*args.ReleasePlanFile)
		if err != nil {
			logger.Fatal(
				"could not parse the release-plan file",
				logfields.Event("release_plan_parsing_failed"),
				zap.String("release_plan_file", *args.ReleasePlanFile),
				zap.Error(err),
			)
		}

		return &publish.ReleaseContext{Plan: plan}
	}

	if *args.Ref != "" {
		return &publish.ReleaseContext{Ref: *args.Ref}
	}

	return nil
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	if *args.EnvFile != "" {
		exitOnErr("could not load the env file", godotenv.Load(*args.EnvFile))
	}

	config := mustParseCfg()

	mustInitLogger(config)

	apiToken := config.GithubAPIToken
	if apiToken == "" {
		apiToken = os.Getenv(githubAPITokenEnvVar)
	}

	insidersCredential := os.Getenv(config.Site.InsidersCredentialEnvVar)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("docs_repository", fmt.Sprintf("%s/%s", config.DocsRepository.Owner, config.DocsRepository.RepositoryName)),
		zap.String("docs_repository_clone_url", config.DocsRepository.CloneURL),
		zap.String("site_subdir", config.DocsRepository.SiteSubdir),
		zap.String("github_api_token", hide(apiToken)),
		zap.String("insiders_credential", hide(insidersCredential)),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
	)

	workspaceDir, err := os.MkdirTemp("", appName+"-*")
	if err != nil {
		logger.Fatal("could not create the workspace directory", zap.Error(err))
	}

	var ghClient publish.GithubClient = githubclt.New(apiToken)
	var cloner publish.RepoCloner = publish.NewGitRepoCloner(docsrepo.New(workspaceDir, apiToken))

	if *args.DryRun {
		logger.Info("dry-run enabled, all remote changes are simulated", logfields.Event("dry_run_enabled"))
		ghClient = publish.NewDryGithubClient(ghClient, logger)
		cloner = publish.NewDryRepoCloner(cloner, logger)
	}

	retryer := publish.NewRetryer()
	goodbye.Register(func(context.Context, os.Signal) { retryer.Stop() })

	publisher := publish.New(publish.Params{
		GithubClient: ghClient,
		SiteBuilder: sitebuilder.New(
			config.Site.Command,
			config.Site.PublicConfigFile,
			config.Site.InsidersConfigFile,
			config.Site.OutputDir,
		),
		RepoCloner: cloner,
		Retryer:    retryer,

		RepositoryOwner: config.DocsRepository.Owner,
		RepositoryName:  config.DocsRepository.RepositoryName,
		CloneURL:        config.DocsRepository.CloneURL,
		BaseBranch:      config.DocsRepository.DefaultBranch,
		SiteSubdir:      config.DocsRepository.SiteSubdir,

		PRTitleTemplate: config.PullRequest.TitleTemplate,
		PRBodyTemplate:  config.PullRequest.BodyTemplate,
		PRLabel:         config.PullRequest.Label,

		MergeGracePeriod: config.MergeGracePeriod(),

		InsidersCredential: insidersCredential,
	})

	if *args.Serve {
		serve(config, publisher)
		return
	}

	releaseCtx := mustResolveReleaseContext(config)

	err = publisher.Run(context.Background(), releaseCtx)
	if err != nil {
		logger.Error(
			"publish run failed",
			logfields.Event("publish_run_failed"),
			zap.Error(err),
		)

		goodbye.Exit(context.Background(), 1)
	}

	if err := os.RemoveAll(workspaceDir); err != nil {
		logger.Warn("could not remove the workspace directory", zap.Error(err))
	}

	logger.Info("publish run finished", logfields.Event("publish_run_finished"))
	goodbye.Exit(context.Background(), 0)
}

func serve(config *cfg.Config, publisher *publish.Publisher) {
	if config.HTTPListenAddr == "" {
		fmt.Fprintln(os.Stderr, "ERROR: http_server_listen_addr must be defined in the config file when --serve is passed")
		os.Exit(1)
	}

	if config.HTTPGithubWebhookEndpoint == "" {
		fmt.Fprintln(os.Stderr, "ERROR: github_webhook_endpoint must be defined in the config file when --serve is passed")
		os.Exit(1)
	}

	triggerChan := make(chan *publish.ReleaseContext, triggerChannelBufferSize)

	loop := publish.NewLoop(publisher, triggerChan)
	go func() {
		defer panicHandler()
		loop.Start()
	}()

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug("stopping publish loop", logfields.Event("publish_loop_stopping"))
		loop.Stop()
	})

	gh := github.New(
		triggerChan,
		github.WithPayloadSecret(config.GithubWebHookSecret),
	)

	mux := http.NewServeMux()
	mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	startHTTPServer(config.HTTPListenAddr, mux)

	select {}
}
