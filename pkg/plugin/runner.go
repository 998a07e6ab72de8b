package plugin

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/console/pkg/host"
)

// Runner executes plugins against a host. A failing plugin aborts its own
// run only; the host keeps running.
type Runner struct {
	Registry *Registry
	Host     *host.Host
}

// Run executes the named plugin. Errors and panics are printed to the
// console and returned wrapped with the plugin name.
func (r *Runner) Run(ctx context.Context, name string) (err error) {
	p, err := r.Registry.Get(name)
	if err != nil {
		r.Host.PrintError(ctx, "", err)
		return err
	}

	logger := log.With().Str("component", "plugin").Str("plugin", p.Name()).Logger()
	logger.Debug().Msg("plugin started")

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Bytes("stack", debug.Stack()).Msgf("plugin panic: %v", rec)
			err = fmt.Errorf("%w: %v", ErrPluginPanic, rec)
		}
		if err != nil {
			r.Host.PrintError(ctx, "", err)
			err = fmt.Errorf("plugin %s: %w", p.Name(), err)
			return
		}
		logger.Debug().Msg("plugin finished")
	}()

	return p.Run(ctx, r.Host)
}
