package engine

import (
	"fmt"

	"github.com/dtnitsch/web-locator/models"
)

// trap turns a panic inside an entry point into a failed result. It must be
// deferred directly.
func trap[T any](e *Engine, entry string, out *T, fail func(error) T) {
	r := recover()
	if r == nil {
		return
	}
	e.logger.Error("entry point recovered", "entry", entry, "panic", fmt.Sprint(r))
	*out = fail(fmt.Errorf("%w: %s failed: %v", models.ErrNotFound, entry, r))
}
