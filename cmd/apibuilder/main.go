package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/apibuilder/internal/config"
	"github.com/yourorg/apibuilder/internal/generator"
	"github.com/yourorg/apibuilder/internal/server"
	"github.com/yourorg/apibuilder/internal/store"
	"github.com/yourorg/apibuilder/pkg/render"
)

const defaultConfigContent = `output:
  dir: "./docs"
  formats:
    - apib
    - openapi

render:
  title: ""
  content_type: "application/json"
  indent: 4
  version: "1.0.0"
  openapi_format: "yaml"

filter:
  ignore_extensions:
    - .js
    - .css
    - .png
    - .jpg
    - .gif
    - .svg
    - .woff
    - .woff2
    - .ico
    - .map
  ignore_content_types:
    - text/html
    - text/css
    - image/*
    - font/*
    - application/javascript
  ignore_paths:
    - /static/
    - /assets/
    - /favicon

sanitize:
  headers:
    - Authorization
    - Cookie
    - Set-Cookie
    - X-Api-Key
    - X-Auth-Token
  body_fields:
    - password
    - secret
    - token
    - api_key
    - access_token
    - refresh_token
    - credential
  replacement: "***REDACTED***"

server:
  host: "127.0.0.1"
  port: 3000
  cors_origin: ""

log:
  level: "info"
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	cfgPath string
	verbose bool
	debug   bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "apibuilder",
		Short:         "Build API docs from inline examples and recorded traffic",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug output")

	root.AddCommand(newInitCmd(g))
	root.AddCommand(newImportCmd(g))
	root.AddCommand(newGenerateCmd(g))
	root.AddCommand(newRenderCmd(g))
	root.AddCommand(newRebuildCmd(g))
	root.AddCommand(newServeCmd(g))
	root.AddCommand(newListCmd(g))
	root.AddCommand(newShowCmd(g))
	root.AddCommand(newDeleteCmd(g))
	root.AddCommand(newFormatsCmd())

	return root
}

// app bundles what every store-backed command needs.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	pipeline *generator.Pipeline
	logger   *slog.Logger
}

func (g *globalFlags) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(g.cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log.Level, g)

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	p, err := generator.New(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	p.Logger = logger
	if g.verbose || g.debug {
		p.Progress = func(stage string) { fmt.Fprintln(cmd.ErrOrStderr(), "..", stage) }
	}
	return &app{cfg: cfg, store: st, pipeline: p, logger: logger}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newLogger(level string, g *globalFlags) *slog.Logger {
	var lvl slog.Level
	switch {
	case g.debug:
		lvl = slog.LevelDebug
	case g.verbose:
		lvl = slog.LevelInfo
	default:
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = slog.LevelInfo
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newInitCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.apibuilder directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := g.cfgPath
			if cfgFile == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				cfgFile = p
			}
			if err := os.MkdirAll(filepath.Dir(cfgFile), 0o755); err != nil {
				return err
			}

			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database ready", a.cfg.Store.Path)
			return nil
		},
	}
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var harPath, treePath, title, docID string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a HAR file or a JSON tree snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (harPath == "") == (treePath == "") {
				return errors.New("exactly one of --har or --tree is required")
			}
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var res *generator.ImportResult
			if harPath != "" {
				if docID != "" {
					return errors.New("--doc only applies to --tree")
				}
				f, err := os.Open(harPath)
				if err != nil {
					return err
				}
				defer f.Close()
				res, err = a.pipeline.ImportHAR(f, title)
				if err != nil {
					return err
				}
			} else {
				data, err := os.ReadFile(treePath)
				if err != nil {
					return err
				}
				res, err = a.pipeline.ImportTree(docID, data)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "document %s version %d (%d actions)\n", res.Document.ID, res.Version, res.Document.ActionCount)
			if res.Filter != nil {
				fmt.Fprintf(out, "logs: %d read, %d kept\n", res.Filter.Input, res.Filter.Kept)
				for reason, n := range res.Filter.Dropped {
					fmt.Fprintf(out, "  dropped %d (%s)\n", n, reason)
				}
			}
			if res.Build != nil && res.Build.Skipped > 0 {
				fmt.Fprintf(out, "skipped %d logs that could not be templated\n", res.Build.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&harPath, "har", "", "HAR file path")
	cmd.Flags().StringVar(&treePath, "tree", "", "JSON tree snapshot path")
	cmd.Flags().StringVar(&title, "title", "", "document title (HAR only)")
	cmd.Flags().StringVar(&docID, "doc", "", "store the snapshot as a new version of this document")
	return cmd
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var docID, outDir string
	var formats []string
	var version int
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write docs of a stored document to the output dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if outDir != "" {
				a.cfg.Output.Dir = outDir
			}
			if err := a.cfg.ValidateGenerate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			paths, err := a.pipeline.Generate(ctx, docID, version, formats, a.cfg.Output.Dir)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", p)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "document id")
	cmd.Flags().IntVar(&version, "version", 0, "tree version (0 = latest)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "output formats (default from config)")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default from config)")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newRenderCmd(g *globalFlags) *cobra.Command {
	var docID, format string
	var version int
	var noCache bool
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print one format of a stored document",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			out, _, err := a.pipeline.Render(docID, version, format, noCache)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out.Output)
			return err
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "document id")
	cmd.Flags().IntVar(&version, "version", 0, "tree version (0 = latest)")
	cmd.Flags().StringVar(&format, "format", "apib", "output format ("+strings.Join(render.Names(), ", ")+")")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newRebuildCmd(g *globalFlags) *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the tree of a document from its stored traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.pipeline.Rebuild(docID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %s version %d (%d actions)\n", res.Document.ID, res.Version, res.Document.ActionCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "document id")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			srv, err := server.New(a.cfg, a.store, a.pipeline)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 3000, "server port")
	return cmd
}

func newListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			docs, err := a.store.ListDocuments()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSOURCE\tVERSION\tACTIONS\tSTATUS\tUPDATED")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", d.ID, d.Title, d.Source, d.Version, d.ActionCount, d.Status, d.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newShowCmd(g *globalFlags) *cobra.Command {
	var docID string
	var version int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show document details and its tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			d, err := a.store.GetDocument(docID)
			if err != nil {
				return err
			}
			tv, err := a.store.GetTree(docID, version)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"document": d, "tree": tv})
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "document id")
	cmd.Flags().IntVar(&version, "version", 0, "version number")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete document",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.store.GetDocument(docID); err != nil {
				return err
			}
			if err := a.store.DeleteDocument(docID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", docID)
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "document id")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List output formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range render.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, render.Extension(name, ""))
			}
			return nil
		},
	}
}
