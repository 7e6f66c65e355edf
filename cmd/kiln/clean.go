package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kiln/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the kiln unit cache",
	Long:  "Remove the on-disk unit cache used to flag output skew between runs.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(_ *cobra.Command, _ []string) error {
	cache, err := driver.OpenDiskCache("kiln")
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to drop cache: %w", err)
	}
	_, _ = fmt.Fprintln(os.Stdout, "unit cache removed")
	return nil
}
