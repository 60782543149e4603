package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "slot-swapper",
		Short:         "API de intercambio de slots de calendario",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "archivo YAML de configuración (o CONFIG_FILE)")

	root.AddCommand(newServeCmd(), newMigrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
