package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goliatone/go-formstate/pkg/definition"
)

var errViolations = errors.New("lint violations found")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintf(os.Stderr, "formstate-lint: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("formstate-lint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [paths...]\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(fs.Output(), "\nLint OpenAPI documents for unsupported or malformed x-formstate extensions.\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fs.Usage()
		return errors.New("no documents given")
	}

	found := 0
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		violations, err := definition.Lint(ctx, raw)
		if err != nil {
			return fmt.Errorf("lint %s: %w", path, err)
		}
		for _, v := range violations {
			fmt.Fprintf(stderr, "%s: %s\n", path, v)
		}
		found += len(violations)
	}
	if found > 0 {
		return fmt.Errorf("%w: %d", errViolations, found)
	}
	fmt.Fprintf(stdout, "%d document(s) ok\n", len(paths))
	return nil
}
