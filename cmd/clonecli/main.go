package main

import (
	"os"

	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := mainCmd.Execute(); err != nil {
		log.L.Fatal(err)
	}
}

var mainCmd = &cobra.Command{
	Use:          os.Args[0],
	Short:        "Mirror a clone-pattern key-value store and publish random updates to it",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logrus.SetOutput(os.Stderr)
		flag, err := cmd.Flags().GetString("log-level")
		if err != nil {
			log.L.Fatal(err)
		}
		level, err := logrus.ParseLevel(flag)
		if err != nil {
			log.L.Fatal(err)
		}
		logrus.SetLevel(level)
	},
	RunE: runClient,
}

func init() {
	mainCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (options \"debug\", \"info\", \"warn\", \"error\", \"fatal\", \"panic\")")
	addClientFlags(mainCmd.Flags())

	mainCmd.AddCommand(
		version.Cmd,
	)
}
