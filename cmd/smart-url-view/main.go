// Package main provides the CLI entry point for smart-url-view.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/lepinkainen/smart-url-view/configs"
	"github.com/lepinkainen/smart-url-view/internal/app"
	"github.com/lepinkainen/smart-url-view/internal/config"
	"github.com/lepinkainen/smart-url-view/pkg/filesystem"
	"github.com/lepinkainen/smart-url-view/pkg/preview"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml" type:"path"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Transform struct {
		File string `arg:"" optional:"" help:"HTML file to transform (default: stdin)"`
	} `cmd:"transform" help:"Replace bare URLs in HTML with preview cards."`

	Preview struct {
		File  string `arg:"" optional:"" help:"HTML file to preview (default: stdin)"`
		Index int    `help:"Output the card for a specific candidate index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Browse the URLs a transform would replace."`

	Serve struct {
		Addr string `help:"Listen address (overrides server.addr)"`
	} `cmd:"serve" help:"Run the HTTP API."`

	Cache struct {
		Stats       struct{} `cmd:"stats" help:"Show cache statistics."`
		ClearHTML   struct{} `cmd:"clear-html" help:"Delete cached card markup."`
		ClearImages struct{} `cmd:"clear-images" help:"Delete cached thumbnails."`
		ClearAll    struct{} `cmd:"clear-all" help:"Delete both caches."`
	} `cmd:"cache" help:"Inspect and clear caches."`

	Posts struct {
		Import struct {
			File string `arg:"" help:"YAML file with posts"`
		} `cmd:"import" help:"Import site posts from YAML."`
	} `cmd:"posts" help:"Manage the site post index."`

	ConfigCmd struct {
		Init struct {
			Force bool `help:"Overwrite an existing file"`
		} `cmd:"init" help:"Write the example configuration to --config."`
	} `cmd:"config" name:"config" help:"Manage the configuration file."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("smart-url-view"),
		kong.Description("Turn bare URLs in HTML into Open Graph preview cards."),
		kong.UsageOnError(),
	)

	// Configure logging level based on debug flag
	level := slog.LevelWarn
	if CLI.Debug {
		level = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(level)

	if ctx.Command() == "config init" {
		exitOnError("Failed to write configuration", initConfig(CLI.Config, CLI.ConfigCmd.Init.Force))
		return
	}

	cfg, err := config.LoadConfig(CLI.Config)
	exitOnError("Failed to load configuration", err)

	if ctx.Command() == "serve" {
		exitOnError("Server failed", serve(cfg, CLI.Serve.Addr, level))
		return
	}

	bg := context.Background()
	a, err := app.New(bg, cfg, nil)
	exitOnError("Failed to initialize", err)
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close", "error", err)
		}
	}()

	switch ctx.Command() {
	case "transform", "transform <file>":
		content, err := readInput(CLI.Transform.File)
		exitOnError("Failed to read input", err)
		fmt.Print(a.Transform(bg, content))

	case "preview", "preview <file>":
		content, err := readInput(CLI.Preview.File)
		exitOnError("Failed to read input", err)
		err = runPreview(bg, a, content, sourceName(CLI.Preview.File), CLI.Preview.Index)
		exitOnError("Preview failed", err)

	case "cache stats":
		stats, err := a.Stats(bg)
		exitOnError("Failed to read cache stats", err)
		printStats(os.Stdout, stats)

	case "cache clear-html":
		n, err := a.ClearHTML(bg)
		exitOnError("Failed to clear HTML cache", err)
		fmt.Printf("Deleted %d cached cards\n", n)

	case "cache clear-images":
		n, err := a.ClearImages()
		exitOnError("Failed to clear image cache", err)
		fmt.Printf("Deleted %d cached images\n", n)

	case "cache clear-all":
		html, images, err := a.ClearAll(bg)
		exitOnError("Failed to clear caches", err)
		fmt.Printf("Deleted %d cached cards and %d cached images\n", html, images)

	case "posts import <file>":
		f, err := os.Open(CLI.Posts.Import.File)
		exitOnError("Failed to open posts file", err)
		n, err := a.Posts.ImportYAML(bg, f)
		f.Close()
		exitOnError("Failed to import posts", err)
		fmt.Printf("Imported %d posts\n", n)

	default:
		panic(ctx.Command())
	}
}

// runPreview lists the candidate URLs in content, or prints one card when
// index is set.
func runPreview(ctx context.Context, a *app.App, content, name string, index int) error {
	t := a.Transformer
	matches := t.Extractor().Extract(content, a.Config.Settings.AllBlocks)
	items := preview.BuildItems(matches, t.IsInternal)

	render := func(url string) string {
		return t.RenderCard(ctx, url, a.Config.Settings)
	}

	if index >= 0 {
		if index >= len(items) {
			return fmt.Errorf("index %d out of range, found %d candidates", index, len(items))
		}
		fmt.Println(render(items[index].Match.URL))
		return nil
	}

	return preview.Run(items, name, render)
}

func printStats(w io.Writer, stats app.Stats) {
	fmt.Fprintf(w, "HTML cache (%s)\n", stats.HTML.Backend)
	fmt.Fprintf(w, "  entries: %d (%d valid, %d expired)\n", stats.HTML.Total, stats.HTML.Valid, stats.HTML.Expired)
	fmt.Fprintf(w, "  size:    %s\n", humanize.Bytes(uint64(max(stats.HTML.SizeBytes, 0))))
	fmt.Fprintf(w, "Image cache\n")
	fmt.Fprintf(w, "  files:   %d\n", stats.Images.Files)
	fmt.Fprintf(w, "  size:    %s\n", humanize.Bytes(uint64(max(stats.Images.Bytes, 0))))
	fmt.Fprintf(w, "Posts:     %s\n", humanize.Comma(stats.Posts))
}

// initConfig writes the embedded example configuration to path.
func initConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}

	data, err := configs.EmbeddedConfigs.ReadFile(configs.ExampleConfigFile)
	if err != nil {
		return fmt.Errorf("failed to read example config: %w", err)
	}
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("input file %s not found", path)
	}
	return string(data), err
}

func sourceName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

func exitOnError(msg string, err error) {
	if err != nil {
		slog.Error(msg, "error", err)
		os.Exit(1)
	}
}
