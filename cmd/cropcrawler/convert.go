package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cropcrawler/pkg/config"
	"cropcrawler/pkg/convert"
	"cropcrawler/pkg/logger"
)

var (
	convertDirectory string
	convertRename    bool
	convertFixNames  bool
	convertQuality   int
	keepOriginals    bool
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Re-encode WEBP images to JPG across a directory",
	Long: `Find WEBP files under a directory and convert them to JPG in place.

Originals are removed only after the converted file is verified readable
and non-empty. One broken file never aborts the batch; the run ends with
a converted/renamed/failed summary.

With --rename, converted files (and existing JPGs) that lack a GUID get
one embedded in their name. With --fix-names, stems are additionally
repaired to the riskType_culture_GUID_number layout using the file's
path components.`,
	Example: `  cropcrawler convert --directory ./download/images
  cropcrawler convert --directory ./download/images --rename
  cropcrawler convert --directory ./download/images --fix-names`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertDirectory, "directory", "d", ".", "directory to process")
	convertCmd.Flags().BoolVar(&convertRename, "rename", false, "embed GUIDs in filenames that lack one")
	convertCmd.Flags().BoolVar(&convertFixNames, "fix-names", false, "repair filenames to the canonical risk layout")
	convertCmd.Flags().IntVar(&convertQuality, "quality", 95, "JPEG quality (1-100)")
	convertCmd.Flags().BoolVar(&keepOriginals, "keep-originals", false, "keep WEBP sources after conversion")
}

func runConvert(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{"log-level": logLevel}
	if convertQuality != 95 {
		flags["quality"] = convertQuality
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	converter := convert.New(convert.Options{
		Quality:        cfg.Convert.Quality,
		Rename:         convertRename,
		FixNames:       convertFixNames,
		DeleteOriginal: !keepOriginals && cfg.Convert.DeleteOriginal,
	}, logger.GetLogger())

	summary, err := converter.ProcessDirectory(convertDirectory)
	if err != nil {
		return err
	}

	fmt.Printf("conversion finished: %d found, %d converted, %d renamed, %d skipped, %d failed\n",
		summary.Found, summary.Converted, summary.Renamed, summary.Skipped, summary.Failed)
	return nil
}
