package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sw33tLie/kpiscope/internal/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the KPI cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the cached baseline, KPIs, fingerprints and run metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		if err := store.Clear(); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		utils.Log.Infof("Cache cleared: %s", store.Dir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
