package paginate

import (
	"fmt"

	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/dtnitsch/web-locator/pkg/pagination"
	"github.com/urfave/cli/v2"
)

func PaginateAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no page given: pass a URL or an HTML file")
	}
	container := c.String("container")
	if container == "" {
		return fmt.Errorf("no container given via --container")
	}

	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	doc, scroller, err := env.Load(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	e := env.NewEngine()
	e.SetDocument(doc)
	if scroller != nil {
		e.SetScroller(scroller)
	}
	defer e.Cleanup()

	res := e.DetectPagination(container, pagination.Options{SkipInfiniteScroll: c.Bool("skip-infinite")})
	if !c.Bool("diagnostics") && res.Type != "" {
		res.Diagnostics = nil
	}
	env.Logger.Info("pagination detected", "type", res.Type, "confidence", res.Confidence, "pass", res.Pass)
	return env.Print(res)
}
