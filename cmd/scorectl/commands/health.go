package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rhuss/scoregate/pkg/api"
)

// HealthAction queries GET /health.
func HealthAction(ctx context.Context, cmd *cli.Command) error {
	c := newClient(cmd.String("url"), "", cmd.Duration("timeout"))

	var h api.HealthResponse
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return cli.Exit("unhealthy: "+err.Error(), 1)
	}

	fmt.Fprintf(cmd.Root().Writer, "status: %s\nin flight: %d\nuptime: %ds\n", h.Status, h.InFlight, h.UptimeSeconds)
	return nil
}
