package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "cantata",
		Usage:    "Music library database & playlist tools",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.WithError(err).Fatal("Command failed")
	}
}
