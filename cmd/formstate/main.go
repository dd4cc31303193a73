package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	formstate "github.com/goliatone/go-formstate"
	"github.com/goliatone/go-formstate/pkg/availability"
	"github.com/goliatone/go-formstate/pkg/config"
	"github.com/goliatone/go-formstate/pkg/definition"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/logger"
	"github.com/goliatone/go-formstate/pkg/prompt"
	"github.com/goliatone/go-formstate/pkg/rsvp"
)

type options struct {
	definition string
	openapi    string
	operation  string
	values     string
	sanitize   bool
	timeout    time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "formstate: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("formstate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.definition, "definition", "", "YAML form definition (defaults to the RSVP form)")
	fs.StringVar(&opts.openapi, "openapi", "", "OpenAPI document whose request body defines the form")
	fs.StringVar(&opts.operation, "operation", "", "operation ID inside -openapi")
	fs.StringVar(&opts.values, "values", "", "JSON file with answers; skips the interactive prompt")
	fs.BoolVar(&opts.sanitize, "sanitize", false, "strip markup from submitted strings")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "how long to wait for async validation with -values")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: formstate [flags]\n\nFill in a form interactively or from a values file and print the submission as JSON.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.definition != "" && opts.openapi != "" {
		return options{}, errors.New("-definition and -openapi are mutually exclusive")
	}
	if opts.openapi != "" && strings.TrimSpace(opts.operation) == "" {
		return options{}, errors.New("-openapi requires -operation")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	base := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat), stderr)
	defer func() { _ = base.Sync() }()
	log := logger.For(base, "cli")

	metrics, stopMetrics, err := startMetrics(cfg.MetricsAddr, log)
	if err != nil {
		return err
	}
	defer stopMetrics()

	checker, closeChecker, err := buildChecker(ctx, cfg, logger.For(base, "availability"))
	if err != nil {
		return err
	}
	defer closeChecker()

	formOpts := []form.Option{
		form.WithLogger(logger.For(base, "form")),
		form.WithMetrics(metrics),
	}
	if opts.sanitize {
		formOpts = append(formOpts, formstate.StrictSanitizer())
	}

	f, sessionOpts, err := buildForm(ctx, opts, checker, formOpts)
	if err != nil {
		return err
	}
	defer f.Close()

	var submission form.Submission
	if opts.values != "" {
		submission, err = submitValues(ctx, f, opts.values, opts.timeout)
	} else {
		sessionOpts = append(sessionOpts, prompt.WithLogger(logger.For(base, "prompt")))
		submission, err = prompt.New(sessionOpts...).Run(ctx, f)
	}
	if err != nil {
		return err
	}
	log.Infow("form submitted", "id", submission.ID)

	payload, err := json.MarshalIndent(submission, "", "  ")
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(payload))
	return err
}

func buildForm(ctx context.Context, opts options, checker availability.Checker, formOpts []form.Option) (*form.Form, []prompt.Option, error) {
	var (
		def definition.Definition
		err error
	)
	switch {
	case opts.definition != "":
		def, err = definition.Load(opts.definition)
	case opts.openapi != "":
		var raw []byte
		raw, err = os.ReadFile(opts.openapi)
		if err == nil {
			def, err = definition.FromOpenAPI(ctx, raw, opts.operation)
		}
	default:
		f, err := formstate.NewRSVP(checker, formOpts...)
		if err != nil {
			return nil, nil, err
		}
		return f, []prompt.Option{
			prompt.WithLabels(rsvp.Labels()),
			prompt.WithSecretFields(rsvp.FieldPassword, rsvp.FieldConfirmPassword),
		}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	f, err := formstate.BuildDefinition(def, checker, formOpts...)
	if err != nil {
		return nil, nil, err
	}
	var secret []string
	for path, format := range def.Formats() {
		if format == "password" {
			secret = append(secret, path)
		}
	}
	return f, []prompt.Option{
		prompt.WithLabels(def.Labels()),
		prompt.WithSecretFields(secret...),
	}, nil
}

// startMetrics serves /metrics on addr when it is set. Without an address
// the counters are still collected on a private registry.
func startMetrics(addr string, log *zap.SugaredLogger) (*form.Metrics, func(), error) {
	reg := prometheus.NewRegistry()
	metrics, err := form.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(addr) == "" {
		return metrics, func() {}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)
	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
