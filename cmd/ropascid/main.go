// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/parsdao/ropasci/server"

	"github.com/samber/do/v2"
	"github.com/urfave/cli/v3"
)

type RoPaSciService struct {
	EchoService *server.EchoService `do:""`

	DatabaseService *server.DatabaseService `do:""`
	GameService     *server.GameService     `do:""`
}

func runServer(_ context.Context, cmd *cli.Command) error {
	i := do.New()

	do.ProvideNamedValue(i, "port", cmd.Int("port"))
	do.ProvideNamedValue(i, "data-dir", cmd.String("data-dir"))

	do.ProvideNamedValue(i, "oracle-signers", cmd.Int("oracle-signers"))
	do.ProvideNamedValue(i, "oracle-threshold", cmd.Int("oracle-threshold"))

	do.Provide(i, server.NewEchoService)
	do.Provide(i, server.NewDatabaseService)
	do.Provide(i, server.NewGameService)

	do.Provide(i, do.InvokeStruct[RoPaSciService])

	roPaSciService, err := do.Invoke[RoPaSciService](i)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	//nolint:wrapcheck
	return roPaSciService.EchoService.Start()
}

func main() {
	//nolint:exhaustruct
	cmd := &cli.Command{
		Name: "ropascid",
		Commands: []*cli.Command{
			{
				Name: "server",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Value:   3000, //nolint:mnd
						Sources: cli.EnvVars("ROPASCI_PORT"),
					},
					&cli.StringFlag{
						Name:    "data-dir",
						Value:   "./ropasci/data",
						Sources: cli.EnvVars("ROPASCI_DATA_DIR"),
					},
					&cli.IntFlag{
						Name:    "oracle-signers",
						Value:   3, //nolint:mnd
						Sources: cli.EnvVars("ROPASCI_ORACLE_SIGNERS"),
					},
					&cli.IntFlag{
						Name:    "oracle-threshold",
						Value:   2, //nolint:mnd
						Sources: cli.EnvVars("ROPASCI_ORACLE_THRESHOLD"),
					},
				},
				Action: runServer,
			},
		},
		DefaultCommand: "server",
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
