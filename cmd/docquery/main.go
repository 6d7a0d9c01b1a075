package main

import (
	"context"
	"fmt"

	"github.com/nimburion/docquery/pkg/app"
	"github.com/nimburion/docquery/pkg/cli"
	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/observability/logger"
)

func main() {
	cmd := cli.NewServiceCommand(cli.ServiceCommandOptions{
		Name:        "docquery",
		Description: "Generic collection query engine over MongoDB",
		EnvPrefix:   "APP",
		RunServer: func(ctx context.Context, cfg *config.Config, log logger.Logger) error {
			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			runErr := a.Run(ctx)
			if err := a.Close(context.Background()); err != nil {
				log.Error("shutdown failed", "error", err)
			}
			if runErr != nil {
				return fmt.Errorf("serve: %w", runErr)
			}
			return nil
		},
		CheckDependencies: app.CheckDependencies,
	})
	cli.Execute(cmd)
}
