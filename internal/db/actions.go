package db

import (
	"fmt"
	"strings"

	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/urfave/cli/v2"
)

// CacheListAction prints every (page, container) with warm locators.
func CacheListAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	database, err := env.OpenDB()
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := database.ListEntries()
	if err != nil {
		return err
	}
	if structured(c) {
		return env.Print(entries)
	}

	out := env.Out
	if len(entries) == 0 {
		fmt.Fprintln(out, "No cached locators found")
		return nil
	}
	fmt.Fprintf(out, "%-50s %-30s %-8s %-20s\n", "Page", "Container", "Fields", "Updated")
	fmt.Fprintln(out, strings.Repeat("-", 110))
	for _, e := range entries {
		fmt.Fprintf(out, "%-50s %-30s %-8d %-20s\n",
			clip(e.PageURL, 50),
			clip(e.Container, 30),
			e.Count,
			e.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	fmt.Fprintf(out, "\nTotal: %d entries\n", len(entries))
	return nil
}

// CacheClearAction drops warm locators and cached pages, for one page when
// an argument is given and for everything otherwise.
func CacheClearAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	database, err := env.OpenDB()
	if err != nil {
		return err
	}
	defer database.Close()

	if c.NArg() > 0 {
		page := c.Args().First()
		n, err := database.ClearPage(page)
		if err != nil {
			return err
		}
		if cache := env.Cache(); cache != nil {
			if err := cache.Delete(page); err != nil {
				return err
			}
		}
		env.Logger.Info("cache cleared", "page", page, "locators", n)
		fmt.Fprintf(env.Out, "Cleared %d locators for %s\n", n, page)
		return nil
	}

	if err := database.ClearAll(); err != nil {
		return err
	}
	if cache := env.Cache(); cache != nil {
		if err := cache.Purge(); err != nil {
			return err
		}
	}
	env.Logger.Info("cache cleared")
	fmt.Fprintln(env.Out, "Cleared all cached locators and pages")
	return nil
}

// RunsAction lists recent batch runs.
func RunsAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	database, err := env.OpenDB()
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRuns(c.Int("limit"))
	if err != nil {
		return err
	}
	if structured(c) {
		return env.Print(runs)
	}

	out := env.Out
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}
	fmt.Fprintf(out, "%-6s %-20s %-10s %-8s %-8s %-8s %-30s\n",
		"ID", "Created", "Command", "Inputs", "Success", "Failed", "Report Dir")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(out, "%-6d %-20s %-10s %-8d %-8d %-8d %-30s\n",
			r.RunID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Command,
			r.InputCount,
			r.SuccessCount,
			r.FailedCount,
			r.ReportDir,
		)
	}
	fmt.Fprintf(out, "\nTotal: %d runs\n", len(runs))
	fmt.Fprintf(out, "\nTip: Use 'web-locator runs show <id>' to see details\n")
	return nil
}

// RunShowAction prints one run and its per-input outcomes.
func RunShowAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	database, err := env.OpenDB()
	if err != nil {
		return err
	}
	defer database.Close()

	runID, err := RunIDOrLatest(c, database)
	if err != nil {
		return err
	}
	run, err := database.GetRunByID(runID)
	if err != nil {
		return err
	}
	results, err := database.GetRunResults(runID)
	if err != nil {
		return err
	}
	if structured(c) {
		return env.Print(map[string]interface{}{"run": run, "results": results})
	}

	out := env.Out
	fmt.Fprintf(out, "Run %d\n", run.RunID)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Created:     %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Command:     %s\n", run.Command)
	fmt.Fprintf(out, "Directory:   %s\n", run.ReportDir)
	fmt.Fprintf(out, "Inputs:      %d total (%d success, %d failed)\n",
		run.InputCount, run.SuccessCount, run.FailedCount)

	if len(results) > 0 {
		fmt.Fprintf(out, "\nResults (%d):\n", len(results))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for i, r := range results {
			fmt.Fprintf(out, "%2d. [%s] %s\n", i+1, r.Outcome, r.Input)
			if r.ErrorMessage != "" {
				fmt.Fprintf(out, "    Error: %s\n", r.ErrorMessage)
			}
		}
	}
	return nil
}

// structured reports whether the user asked for json or yaml explicitly.
func structured(c *cli.Context) bool {
	return c.IsSet("format")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
