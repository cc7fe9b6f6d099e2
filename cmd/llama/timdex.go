package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mitlibraries/llama/pkg/marc"
	"github.com/mitlibraries/llama/pkg/storage"
)

var concatOpts struct {
	exportType        string
	sourceBucket      string
	destinationBucket string
	date              string
}

var concatTimdexExportCmd = &cobra.Command{
	Use:   "concat-timdex-export",
	Short: "Concatenate a day's TIMDEX export files and move the result to the destination bucket",
	Long: `Concatenate all files with a given date prefix in the source bucket and move the
concatenated file to the destination bucket. Files are expected to follow the
naming used by the Alma TIMDEX export jobs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		exportType, err := marc.ParseExportType(concatOpts.exportType)
		if err != nil {
			return err
		}
		source := firstNonEmpty(concatOpts.sourceBucket, cfg.AlmaBucket)
		destination := firstNonEmpty(concatOpts.destinationBucket, cfg.DipAlephBucket)
		if source == "" || destination == "" {
			return fmt.Errorf("source and destination buckets are required (--source-bucket/ALMA_BUCKET, --destination-bucket/DIP_ALEPH_BUCKET)")
		}
		date, err := runDate(concatOpts.date, time.Now())
		if err != nil {
			return err
		}

		store, err := storage.New(cmd.Context(), logger, cfg.AWSRegion)
		if err != nil {
			return err
		}
		output, err := marc.NewProcessor(store, logger).ConcatTimdexExport(cmd.Context(), exportType, source, destination, date.Format("20060102"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Concatenated file %s succesfully created and moved to bucket %s.\n", output, destination)
		return nil
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	concatTimdexExportCmd.Flags().StringVar(&concatOpts.exportType, "export-type", "", "Export type, FULL or UPDATE")
	concatTimdexExportCmd.Flags().StringVar(&concatOpts.sourceBucket, "source-bucket", "", "Bucket holding the export files (default ALMA_BUCKET)")
	concatTimdexExportCmd.Flags().StringVar(&concatOpts.destinationBucket, "destination-bucket", "", "Bucket to move the concatenated file to (default DIP_ALEPH_BUCKET)")
	concatTimdexExportCmd.Flags().StringVar(&concatOpts.date, "date", "", "Date of the exports to process (default today)")
	_ = concatTimdexExportCmd.MarkFlagRequired("export-type")
}
