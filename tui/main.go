package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/docopt/docopt-go"
	"github.com/golang/glog"
	"golang.org/x/term"

	"github.com/twschum/mix-mind/grid"
	"github.com/twschum/mix-mind/internal/config"
	"github.com/twschum/mix-mind/internal/export"
	"github.com/twschum/mix-mind/internal/journal"
)

const TuiVersion = "0.1.0"

func main() {
	usage := fmt.Sprintf(`Bar stock editor.

Edits the ingredient grid of a mixmind server, or a local snapshot of it.

The default api url is %s.
The config file is created with the default columns when missing.

Usage:
    tui [--api_url=<api_url>] [--config=<path>] [--data_dir=<dir>] [--offline] [-v <level>]
    tui export --out=<path> [--api_url=<api_url>] [--config=<path>] [--data_dir=<dir>] [--offline] [-v <level>]
    tui import --in=<path> [--api_url=<api_url>] [--config=<path>] [--data_dir=<dir>] [--offline] [-v <level>]
    tui markup --column=<key> [--row=<n>] [--api_url=<api_url>] [--config=<path>] [--data_dir=<dir>] [--offline] [-v <level>]
    tui history [--data_dir=<dir>] [--limit=<n>] [-v <level>]
    tui -h | --help
    tui --version

Options:
    -h --help            Show this screen.
    --version            Show version.
    --api_url=<api_url>  Server base url.
    --config=<path>      Column and editor settings [default: ~/.mixmind/grid.json].
    --data_dir=<dir>     Snapshots, exports, journal and logs [default: ~/.mixmind].
    --offline            Edit the local snapshot instead of the server.
    --out=<path>         Export file, .xlsx or .csv.
    --in=<path>          Ingredients to add or update, .csv or .xlsx.
    --column=<key>       Column whose editor control to print as HTML.
    --row=<n>            Row number in sort order [default: 1].
    --limit=<n>          Number of journal entries [default: 50].
    -v <level>           Log verbosity [default: 0].`, config.DefaultAPIURL)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], TuiVersion)
	if err != nil {
		panic(err)
	}

	dataDir := expandHome(optString(opts, "--data_dir"))
	if err := setupLogging(dataDir, optString(opts, "-v")); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer glog.Flush()

	if history_, _ := opts.Bool("history"); history_ {
		err = history(opts, dataDir)
	} else if export_, _ := opts.Bool("export"); export_ {
		err = exportGrid(opts, dataDir)
	} else if import_, _ := opts.Bool("import"); import_ {
		err = importGrid(opts, dataDir)
	} else if markup_, _ := opts.Bool("markup"); markup_ {
		err = markup(opts, dataDir)
	} else {
		err = edit(opts, dataDir)
	}
	if err != nil {
		glog.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		glog.Flush()
		os.Exit(1)
	}
}

// setupLogging sends glog to files under dataDir/logs. The program owns the
// terminal, so nothing goes to stderr below the error level.
func setupLogging(dataDir, level string) error {
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	if level == "" {
		level = "0"
	}
	for name, value := range map[string]string{
		"log_dir":         logDir,
		"logtostderr":     "false",
		"stderrthreshold": "FATAL",
		"v":               level,
	} {
		if err := flag.Set(name, value); err != nil {
			return fmt.Errorf("log flag %s: %w", name, err)
		}
	}
	return flag.CommandLine.Parse(nil)
}

func openGrid(opts docopt.Opts, dataDir string) (*config.File, grid.Store, string, error) {
	cfg, err := config.Load(expandHome(optString(opts, "--config")))
	if err != nil {
		return nil, nil, "", err
	}
	if url := optString(opts, "--api_url"); url != "" {
		cfg.APIURL = url
	}
	offline, _ := opts.Bool("--offline")
	store, source, err := openStore(cfg, dataDir, offline)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, store, source, nil
}

func edit(opts docopt.Opts, dataDir string) error {
	cfg, store, source, err := openGrid(opts, dataDir)
	if err != nil {
		return err
	}

	j, err := journal.Open(filepath.Join(dataDir, "journal.db"))
	if err != nil {
		return err
	}
	defer j.Close()

	gc := cfg.Grid()
	gc.OnOutcome = j.Recorder()
	c := grid.New(gc, store)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		if err := loadNow(c, store); err != nil {
			return err
		}
		fmt.Print(printGrid(c, grid.View{SortKey: cfg.Sort}))
		return nil
	}

	p := tea.NewProgram(newModel(c, source, dataDir, cfg.Sort, cfg.PageSize), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func exportGrid(opts docopt.Opts, dataDir string) error {
	cfg, store, source, err := openGrid(opts, dataDir)
	if err != nil {
		return err
	}
	c := grid.New(cfg.Grid(), store)
	if err := loadNow(c, store); err != nil {
		return err
	}
	out := expandHome(optString(opts, "--out"))
	rows := rowsInView(c, grid.View{SortKey: cfg.Sort})
	if err := export.File(out, c.Columns(), rows); err != nil {
		return err
	}
	fmt.Printf("exported %d rows from %s to %s\n", len(rows), source, out)
	return nil
}

func importGrid(opts docopt.Opts, dataDir string) error {
	cfg, store, source, err := openGrid(opts, dataDir)
	if err != nil {
		return err
	}
	c := grid.New(cfg.Grid(), store)
	if err := loadNow(c, store); err != nil {
		return err
	}
	in := expandHome(optString(opts, "--in"))
	recs, err := export.Read(in, c.Columns())
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()
	res, err := importRows(ctx, c, store, recs)
	fmt.Printf("imported %s into %s: %d added, %d updated, %d unchanged, %d skipped\n",
		in, source, res.Added, res.Updated, res.Unchanged, res.Skipped)
	return err
}

func markup(opts docopt.Opts, dataDir string) error {
	cfg, store, _, err := openGrid(opts, dataDir)
	if err != nil {
		return err
	}
	c := grid.New(cfg.Grid(), store)
	if err := loadNow(c, store); err != nil {
		return err
	}
	row, err := strconv.Atoi(optString(opts, "--row"))
	if err != nil {
		return fmt.Errorf("--row: %w", err)
	}
	html, err := cellMarkup(c, grid.View{SortKey: cfg.Sort}, row, optString(opts, "--column"))
	if err != nil {
		return err
	}
	fmt.Println(html)
	return nil
}

func history(opts docopt.Opts, dataDir string) error {
	limit, err := strconv.Atoi(optString(opts, "--limit"))
	if err != nil {
		return fmt.Errorf("--limit: %w", err)
	}
	j, err := journal.Open(filepath.Join(dataDir, "journal.db"))
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-6s %-13s %s", e.At.Local().Format("2006-01-02 15:04:05"), e.Op, e.Outcome, e.RowKey)
		if e.Field != "" {
			line += fmt.Sprintf("  %s: %q -> %q", e.Field, e.Old, e.New)
		}
		if e.Message != "" {
			line += "  (" + e.Message + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func optString(opts docopt.Opts, key string) string {
	s, _ := opts.String(key)
	return s
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
