package db

import (
	"fmt"
	"strconv"

	dbpkg "github.com/dtnitsch/web-locator/pkg/db"
	"github.com/urfave/cli/v2"
)

// RunIDOrLatest returns the run ID from args, or the latest run if none
// was given.
func RunIDOrLatest(c *cli.Context, database *dbpkg.DB) (int64, error) {
	if c.NArg() == 0 {
		runs, err := database.ListRuns(1)
		if err != nil {
			return 0, fmt.Errorf("failed to get latest run: %w", err)
		}
		if len(runs) == 0 {
			return 0, fmt.Errorf("no runs found. Run 'web-locator batch ...' first")
		}
		return runs[0].RunID, nil
	}

	runID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid run ID: %s", c.Args().First())
	}
	return runID, nil
}
