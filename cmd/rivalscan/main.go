package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:   "rivalscan",
		Short: "Competitive research pipeline",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	root.AddCommand(researchCMD(&cfgPath), validateCMD(&cfgPath), configCMD(&cfgPath), serveCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
