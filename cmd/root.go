package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mc-resource-manager/logger"
)

var configDir string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mc-resource-manager",
	Short: "Identifies and catalogs Minecraft mods, packs, modpacks and saves",
	Long: `mc-resource-manager inspects files dropped into a Minecraft directory,
recognizes mods, resource packs, shader packs, modpacks and saves by their
content and keeps a catalog of them keyed by content hash.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding the .env configuration file")
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Log.Errorw("Command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
