package groups

import (
	"fmt"

	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/urfave/cli/v2"
)

func GroupsAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no page given: pass a URL or an HTML file")
	}
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	doc, _, err := env.Load(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	e := env.NewEngine()
	e.SetDocument(doc)
	e.RequestFallbacks(c.Bool("fallbacks"))
	defer e.Cleanup()

	res := e.DetectGroups()
	if limit := c.Int("limit"); limit > 0 && len(res.Groups) > limit {
		res.Groups = res.Groups[:limit]
	}
	env.Logger.Info("groups detected", "count", len(res.Groups))
	return env.Print(res)
}
