package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/config"
)

const usage = `Site Content Admin CLI

Reads and edits the site content document directly through the configured
store. Writes go through the same merge and invalidation path as the HTTP API.

USAGE:
  admin <command> [options]

COMMANDS:
  get           Print the document, one section or one page view
  seed          Store a document from a file unless one already exists
  merge         Deep-merge a JSON patch into the document
  put-section   Replace one top-level section
  sections      List sections and the views they invalidate
  env           Describe the environment variables

ENVIRONMENT VARIABLES:
  STORAGE_URL       memory://, file:///path, postgres://... or s3://bucket
  DOCUMENT_KEY      Document to operate on (default: site-content)

  Run "admin env" for the full list. Configuration can be loaded from a .env
  file in the current directory. Command line environment variables override
  .env file values.

EXAMPLES:
  # Print the whole document
  admin get

  # Print one section, or everything the about page renders
  admin get --section=hero
  admin get --page=about

  # Seed a fresh store
  admin seed content.json

  # Merge a patch from stdin
  echo '{"hero":{"title":"Welcome"}}' | admin merge -

  # Replace a section
  admin put-section contact contact.json
`

var errUsage = errors.New("invalid usage")

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		os.Exit(0)
	}
	if command == "env" {
		fmt.Println(config.EnvUsage())
		os.Exit(0)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(context.Background(), cfg, logger, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, usage)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]

	rt, err := cfg.Build(ctx, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer rt.Close()
	defer rt.Service.Wait()

	svc := rt.Service
	key := cfg.DocumentKey

	switch command {
	case "get":
		return handleGet(ctx, svc, key, args, stdout)

	case "seed":
		if len(args) != 1 {
			return fmt.Errorf("%w: seed takes a file", errUsage)
		}
		doc, err := readDocument(args[0], stdin)
		if err != nil {
			return err
		}
		created, err := svc.Seed(ctx, key, doc)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(stdout, "Seeded %s\n", key)
		} else {
			fmt.Fprintf(stdout, "%s already exists, left unchanged\n", key)
		}
		return nil

	case "merge":
		if len(args) != 1 {
			return fmt.Errorf("%w: merge takes a file or -", errUsage)
		}
		patch, err := readDocument(args[0], stdin)
		if err != nil {
			return err
		}
		doc, err := svc.Update(ctx, key, patch)
		if err != nil {
			return err
		}
		return printJSON(stdout, doc)

	case "put-section":
		if len(args) != 2 {
			return fmt.Errorf("%w: put-section takes a section name and a file or -", errUsage)
		}
		r, closeFn, err := open(args[1], stdin)
		if err != nil {
			return err
		}
		defer closeFn()
		value, err := sitecontent.DecodeValue(r)
		if err != nil {
			return err
		}
		doc, err := svc.PutSection(ctx, key, args[0], value)
		if err != nil {
			return err
		}
		return printJSON(stdout, doc[args[0]])

	case "sections":
		doc, err := svc.Get(ctx, key)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "SECTION\tVIEWS\n")
		for _, section := range doc.Sections() {
			fmt.Fprintf(w, "%s\t%s\n", section, strings.Join(sitecontent.ViewsForSections([]string{section}), ", "))
		}
		return w.Flush()
	}

	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func handleGet(ctx context.Context, svc sitecontent.Service, key string, args []string, stdout io.Writer) error {
	var section, page string
	for _, arg := range args {
		name, value := parseFlag(arg)
		switch name {
		case "section":
			section = value
		case "page":
			page = value
		default:
			return fmt.Errorf("%w: unknown option %s", errUsage, arg)
		}
	}

	switch {
	case section != "" && page != "":
		return fmt.Errorf("%w: --section and --page are exclusive", errUsage)
	case section != "":
		value, err := svc.GetSection(ctx, key, section)
		if err != nil {
			return err
		}
		return printJSON(stdout, value)
	case page != "":
		view, err := svc.GetPage(ctx, key, page)
		if err != nil {
			return err
		}
		return printJSON(stdout, view)
	}

	doc, err := svc.Get(ctx, key)
	if err != nil {
		return err
	}
	return printJSON(stdout, doc)
}

func parseFlag(arg string) (string, string) {
	if !strings.HasPrefix(arg, "--") {
		return "", ""
	}
	name, value, found := strings.Cut(arg[2:], "=")
	if !found {
		return name, "true"
	}
	return name, value
}

// open returns stdin for "-" and the named file otherwise
func open(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func readDocument(path string, stdin io.Reader) (sitecontent.Document, error) {
	r, closeFn, err := open(path, stdin)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return sitecontent.DecodeDocument(r)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
