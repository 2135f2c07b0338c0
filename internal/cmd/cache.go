package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovo-tools/ovocheck/internal/cache"
	"github.com/ovo-tools/ovocheck/internal/config"
	"github.com/ovo-tools/ovocheck/internal/project"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
	Long: `Inspect or clear the result cache in .ovocheck/cache.db.

A run is replayed from the cache when its sources, stubs, plugin settings
and trigger environment variables all match an earlier run.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached results",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// openCache opens the cache of the current project.
func openCache(cmd *cobra.Command) (*project.Project, *cache.Cache, error) {
	p, err := openProject(cmd)
	if err != nil {
		return nil, nil, err
	}
	if p.ConfigDir == "" {
		return nil, nil, fmt.Errorf("no %s directory found (run 'ovocheck init')", config.ConfigDirName)
	}
	c, err := cache.Open(p.ConfigDir)
	if err != nil {
		return nil, nil, err
	}
	return p, c, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	p, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.GetStats()
	if err != nil {
		return err
	}
	f, _, err := formatter(p.Config)
	if err != nil {
		return err
	}
	return f.Format(cmd.OutOrStdout(), stats)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	_, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", c.Path())
	return nil
}
