// Command pgw4era builds pseudo-global-warming boundary conditions for WRF
// from ERA5 and a CMIP6 climate-change signal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.ngs.io/pgw4era/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRoot(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
