package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/models"
	"github.com/mitlibraries/llama/pkg/sampledata"
)

var loadSampleDataCmd = &cobra.Command{
	Use:   "load-sample-data <manifest>",
	Short: "Create sample vendors and invoices in a sandbox Alma instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if err := sampledata.CheckWorkspace(cfg.Workspace); err != nil {
			return err
		}
		if err := cfg.Require("ALMA_API_URL", "ALMA_API_ACQ_READ_WRITE_KEY"); err != nil {
			return err
		}

		manifest, err := models.FromFile(args[0])
		if err != nil {
			return err
		}
		client := alma.New(cfg.AlmaAPIURL, cfg.AlmaReadWriteKey, cfg.AlmaMaxRetries)
		count, err := sampledata.New(logger, client).Load(cmd.Context(), manifest)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d sample invoices created and processed in Alma\n", count)
		return nil
	},
}
