package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:           "finassist",
		Short:         "Personal finance assistant: market data, news, budgeting and document chat",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.yaml)")

	root.AddCommand(
		serveCMD(&cfgPath),
		assetsCMD(&cfgPath),
		indicatorsCMD(&cfgPath),
		commoditiesCMD(&cfgPath),
		newsCMD(&cfgPath),
		indexCMD(&cfgPath),
		chatCMD(&cfgPath),
		budgetCMD(),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
