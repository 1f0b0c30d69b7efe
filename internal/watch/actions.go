package watch

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/urfave/cli/v2"
)

func WatchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no file given: pass a local HTML file")
	}
	path := c.Args().First()
	if common.IsURL(path) {
		return fmt.Errorf("watch needs a local file, got URL %s", path)
	}

	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := New(env, path, Options{
		Container: c.String("container"),
		Debounce:  c.Duration("debounce"),
		Fallbacks: c.Bool("fallbacks"),
	}, func(u Update) {
		if err := env.Print(u); err != nil {
			env.Logger.Error("failed to print update", "error", err)
		}
	})
	if err != nil {
		return err
	}
	env.Logger.Info("watching", "path", path)
	return w.Run(ctx)
}
