package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dtnitsch/web-locator/internal/batch"
	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/dtnitsch/web-locator/internal/db"
	"github.com/dtnitsch/web-locator/internal/fields"
	"github.com/dtnitsch/web-locator/internal/groups"
	"github.com/dtnitsch/web-locator/internal/locate"
	"github.com/dtnitsch/web-locator/internal/paginate"
	"github.com/dtnitsch/web-locator/internal/watch"
	"github.com/dtnitsch/web-locator/pkg/help"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:                   "web-locator",
		Usage:                  "Stable selectors, repeated groups and pagination for web pages",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (yaml or toml)",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: " + strings.Join(common.Formats, ", "),
				Value:   "json",
			},
			&cli.StringFlag{
				Name:  "select",
				Usage: "Comma-separated top-level result fields to keep",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Warm locator database path (default: next to the executable)",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Page cache directory",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Do not read or write the page cache",
			},
			&cli.BoolFlag{
				Name:  "live",
				Usage: "Capture pages in Chrome instead of fetching static HTML",
			},
			&cli.IntFlag{
				Name:  "viewport-width",
				Usage: "Viewport width in CSS pixels",
			},
			&cli.IntFlag{
				Name:  "viewport-height",
				Usage: "Viewport height in CSS pixels",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "quickstart",
				Usage: "Print a YAML cheat sheet of commands and outcomes",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprint(c.App.Writer, help.ColdstartYAML)
					return err
				},
			},
			{
				Name:      "locate",
				Usage:     "Locate the element at a point or matching a selector",
				ArgsUsage: "<url|file>",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "x", Usage: "Viewport x coordinate"},
					&cli.Float64Flag{Name: "y", Usage: "Viewport y coordinate"},
					&cli.StringFlag{
						Name:  "selector",
						Usage: "CSS or XPath expression picking the element instead of a point",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Hover mode: point, list or pagination",
						Value: "point",
					},
					&cli.StringFlag{
						Name:  "container",
						Usage: "Instance selector used in list mode",
					},
					&cli.BoolFlag{
						Name:  "fallbacks",
						Usage: "Also produce anchor fallback locators",
					},
				},
				Action: locate.LocateAction,
			},
			{
				Name:      "fields",
				Usage:     "Discover the fields of a repeated container",
				ArgsUsage: "<url|file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "container",
						Usage:    "Instance selector of the list",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "field",
						Usage: "Locate only the field matching this expression",
					},
					&cli.BoolFlag{
						Name:  "no-db",
						Usage: "Do not read or store warm locators",
					},
					&cli.BoolFlag{
						Name:  "fallbacks",
						Usage: "Also produce anchor fallback locators",
					},
				},
				Action: fields.FieldsAction,
			},
			{
				Name:      "groups",
				Usage:     "Detect repeated element groups",
				ArgsUsage: "<url|file>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum groups to print (0 for all)",
					},
					&cli.BoolFlag{
						Name:  "fallbacks",
						Usage: "Also produce anchor fallback locators",
					},
				},
				Action: groups.GroupsAction,
			},
			{
				Name:      "paginate",
				Usage:     "Classify how a list paginates",
				ArgsUsage: "<url|file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "container",
						Usage:    "Instance selector of the list",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "skip-infinite",
						Usage: "Skip the infinite scroll pass",
					},
					&cli.BoolFlag{
						Name:  "diagnostics",
						Usage: "Keep diagnostics on successful results",
					},
				},
				Action: paginate.PaginateAction,
			},
			{
				Name:      "batch",
				Usage:     "Run one analysis over many pages",
				ArgsUsage: "<url|glob>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Analysis: groups, paginate or fields",
						Value: batch.ModeGroups,
					},
					&cli.StringFlag{
						Name:  "container",
						Usage: "Instance selector, required by paginate and fields",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Pages analyzed in parallel",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "fallbacks",
						Usage: "Also produce anchor fallback locators",
					},
					&cli.BoolFlag{
						Name:  "no-db",
						Usage: "Do not record the run or write report files",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Report directory root",
						Value: "reports",
					},
				},
				Action: batch.BatchAction,
			},
			{
				Name:      "watch",
				Usage:     "Re-detect groups and pagination whenever a local file changes",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "container",
						Usage: "Instance selector; enables pagination detection",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a change is processed",
						Value: 200 * time.Millisecond,
					},
					&cli.BoolFlag{
						Name:  "fallbacks",
						Usage: "Also produce anchor fallback locators",
					},
				},
				Action: watch.WatchAction,
			},
			{
				Name:  "cache",
				Usage: "Inspect or clear warm locators and cached pages",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List pages and containers with warm locators",
						Action: db.CacheListAction,
					},
					{
						Name:      "clear",
						Usage:     "Clear one page, or everything when no page is given",
						ArgsUsage: "[page]",
						Action:    db.CacheClearAction,
					},
				},
			},
			{
				Name:  "runs",
				Usage: "Inspect recorded batch runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum runs to list",
						Value: 20,
					},
				},
				Action: db.RunsAction,
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Show one run, or the latest",
						ArgsUsage: "[id]",
						Action:    db.RunShowAction,
					},
				},
			},
		},
		CommandNotFound: func(c *cli.Context, command string) {
			names := make([]string, 0, len(c.App.Commands))
			for _, cmd := range c.App.Commands {
				names = append(names, cmd.Name)
			}
			fmt.Fprintf(os.Stderr, "unknown command %q", command)
			if s, ok := common.Suggest(command, names); ok {
				fmt.Fprintf(os.Stderr, ", did you mean %q?", s)
			}
			fmt.Fprintln(os.Stderr)
			os.Exit(1)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
