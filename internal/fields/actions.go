package fields

import (
	"fmt"

	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/dtnitsch/web-locator/models"
	"github.com/urfave/cli/v2"
)

// FieldsAction discovers every field of a container, or locates one field
// when --field is given. Locators are kept warm per (page, container) in
// the database unless --no-db is set.
func FieldsAction(c *cli.Context) error {
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

	page := c.Args().First()
	doc, _, err := env.Load(c.Context, page)
	if err != nil {
		return err
	}

	e := env.NewEngine()
	e.SetDocument(doc)
	e.RequestFallbacks(c.Bool("fallbacks"))
	e.EnableListCapture()
	e.SetContainer(container)
	defer e.Cleanup()

	useDB := !c.Bool("no-db")

	if field := c.String("field"); field != "" {
		nodes, err := e.Resolve(field)
		if err != nil {
			return fmt.Errorf("failed to resolve field: %w", err)
		}
		if len(nodes) == 0 {
			return fmt.Errorf("field %q matches nothing", field)
		}

		var warm []string
		if useDB {
			database, err := env.OpenDB()
			if err != nil {
				return err
			}
			defer database.Close()
			if warm, err = database.LoadFields(page, container); err != nil {
				env.Logger.Warn("failed to load warm locators", "error", err)
			}
			res := e.LocateField(nodes[0], warm)
			if res.Outcome == models.OutcomeOK && !res.FromWarm {
				if err := database.SaveFields(page, container, append(warm, res.Locator.Primary)); err != nil {
					env.Logger.Warn("failed to save field locator", "error", err)
				}
			}
			return env.Print(res)
		}
		return env.Print(e.LocateField(nodes[0], nil))
	}

	res := e.FieldsFor(container)
	env.Logger.Info("fields discovered", "container", container, "count", len(res.Fields), "outcome", res.Outcome)
	if useDB && res.Outcome == models.OutcomeOK {
		database, err := env.OpenDB()
		if err != nil {
			return err
		}
		defer database.Close()

		locators := make([]string, 0, len(res.Fields))
		for _, f := range res.Fields {
			locators = append(locators, f.Locator.Primary)
		}
		if err := database.SaveFields(page, container, locators); err != nil {
			env.Logger.Warn("failed to save field locators", "error", err)
		}
	}
	return env.Print(res)
}
