package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/muesli/reflow/truncate"
	"github.com/urfave/cli/v3"

	"github.com/starford/flashdesk/internal"
	"github.com/starford/flashdesk/internal/console"
	"github.com/starford/flashdesk/internal/hostapi"
	pkgconfig "github.com/starford/flashdesk/pkg/config"
)

var version = "dev"

// maxCellWidth bounds a column in the terminal table.
const maxCellWidth = 48

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func query(ctx context.Context, cmd *cli.Command) error {
	q := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("query: a statement is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	res, err := internal.Query(ctx, q, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if cmd.Bool("copy") {
		if err := console.CopyCSV(res); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		fmt.Fprintln(os.Stderr, "copied", console.Notice(len(res.Rows), res.RowCount), "to clipboard")
		return nil
	}

	if cmd.Bool("csv") {
		_, err := io.WriteString(os.Stdout, console.CSV(res))
		return err
	}

	return printTable(os.Stdout, res)
}

func printTable(w io.Writer, res *hostapi.QueryResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cell = strings.Join(strings.Fields(cell), " ")
			cells[i] = truncate.StringWithTail(cell, maxCellWidth, "…")
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%s, %.1f ms)\n", console.Notice(len(res.Rows), res.RowCount), res.ElapsedMS)
	return err
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr))
}

func main() {
	cmd := &cli.Command{
		Name:    "flashdesk",
		Usage:   "Browse and edit flashcards through the desktop application's local API",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the web interface (default)",
				Action: serve,
			},
			{
				Name:      "query",
				Usage:     "Run one read-only query against the collection",
				ArgsUsage: "<statement>",
				Description: heredoc.Doc(`
					Sends the statement to the host's query endpoint and prints the
					result as an aligned table. Long cells are shortened.

					  flashdesk query "select id, model from notes limit 5"
					  flashdesk query --csv "select * from cards" > cards.csv
				`),
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "csv", Usage: "Print every row as CSV"},
					&cli.BoolFlag{Name: "copy", Usage: "Copy the CSV export to the clipboard"},
				},
				Action: query,
			},
			{
				Name:  "mcp",
				Usage: "Serve the MCP tool surface on stdin/stdout",
				Description: heredoc.Doc(`
					Exposes the collection schema, item listing, field and tag edits,
					flags, queries and audio generation as MCP tools. Logs go to stderr.
				`),
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
