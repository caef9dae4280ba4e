package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cropcrawler/pkg/config"
	"cropcrawler/pkg/logger"
	"cropcrawler/pkg/naming"
)

var fixGUIDDirectory string

// fixGUIDCmd represents the fix-guid command
var fixGUIDCmd = &cobra.Command{
	Use:   "fix-guid",
	Short: "Normalize filenames with unique GUIDs and remove duplicates",
	Long: `Scan a directory recursively and make every image filename carry a
unique GUID.

Files with a valid embedded GUID keep it unless it collides with an
earlier file's GUID; GUID-less or malformed names get a fresh GUID while
keeping their extension. Byte-identical files are removed as duplicates.
Running the command twice on the same directory changes nothing the
second time.`,
	Example: `  cropcrawler fix-guid --directory ./download/images`,
	RunE:    runFixGUID,
}

func init() {
	rootCmd.AddCommand(fixGUIDCmd)

	fixGUIDCmd.Flags().StringVarP(&fixGUIDDirectory, "directory", "d", ".", "directory to normalize")
}

func runFixGUID(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, map[string]interface{}{"log-level": logLevel})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	normalizer := naming.NewNormalizer(logger.GetLogger())
	result, err := normalizer.Normalize(fixGUIDDirectory)
	if err != nil {
		return err
	}

	fmt.Printf("normalization finished: %d scanned, %d renamed, %d reassigned, %d duplicates removed, %d failed\n",
		result.Scanned, result.Renamed, result.Reassigned, result.Removed, result.Failed)
	return nil
}
