package locate

import (
	"fmt"

	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/dtnitsch/web-locator/models"
	"github.com/urfave/cli/v2"
)

// Hover modes accepted by --mode.
var modes = []string{"point", "list", "pagination"}

func LocateAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no page given: pass a URL or an HTML file")
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
	e.RequestFallbacks(c.Bool("fallbacks"))
	defer e.Cleanup()

	switch mode := c.String("mode"); mode {
	case "point":
	case "list":
		e.EnableListCapture()
		e.SetContainer(c.String("container"))
	case "pagination":
		e.EnablePaginationCapture()
	default:
		if s, ok := common.Suggest(mode, modes); ok {
			return fmt.Errorf("unknown mode %q, did you mean %q?", mode, s)
		}
		return fmt.Errorf("unknown mode %q", mode)
	}

	var res models.PointResult
	switch {
	case c.String("selector") != "":
		nodes, err := e.Resolve(c.String("selector"))
		if err != nil {
			return fmt.Errorf("failed to resolve selector: %w", err)
		}
		if len(nodes) == 0 {
			return fmt.Errorf("selector %q matches nothing", c.String("selector"))
		}
		res = e.LocateElement(nodes[0])
	case c.IsSet("x") && c.IsSet("y"):
		res = e.Hover(c.Float64("x"), c.Float64("y"))
	default:
		return fmt.Errorf("pass --x and --y, or --selector")
	}

	env.Logger.Info("located", "outcome", res.Outcome, "selector", res.Locator.Primary)
	return env.Print(res)
}
