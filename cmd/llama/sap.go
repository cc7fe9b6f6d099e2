package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/config"
	"github.com/mitlibraries/llama/pkg/dropbox"
	"github.com/mitlibraries/llama/pkg/email"
	"github.com/mitlibraries/llama/pkg/executors"
	"github.com/mitlibraries/llama/pkg/params"
	"github.com/mitlibraries/llama/pkg/sap"
)

var sapOpts struct {
	date     string
	finalRun bool
	realRun  bool
}

var sapInvoicesCmd = &cobra.Command{
	Use:   "sap-invoices",
	Short: "Process invoices waiting to be sent to SAP",
	Long: `Retrieve invoices waiting to be sent from Alma, build the SAP summary and cover
sheets and email them. A review run (the default) only reports. A final run also
generates the SAP data and control files; with --real-run they are uploaded to
the SAP dropbox, the sequence number is updated and the invoices are marked
paid in Alma. Without --real-run nothing is sent or changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		required := []string{"ALMA_API_URL", "ALMA_API_ACQ_READ_WRITE_KEY"}
		if sapOpts.realRun {
			required = append(required, "SES_SEND_FROM_EMAIL", "SAP_REPLY_TO_EMAIL", "SAP_REVIEW_RECIPIENT_EMAILS")
			if sapOpts.finalRun {
				required = append(required, "SAP_FINAL_RECIPIENT_EMAILS", "SAP_DROPBOX_HOST", "SAP_DROPBOX_PORT", "SAP_DROPBOX_USER", "SAP_DROPBOX_KEY")
			}
		}
		if err := cfg.Require(required...); err != nil {
			return err
		}
		date, err := runDate(sapOpts.date, time.Now())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := params.New(ctx, cfg.AWSRegion, "")
		if err != nil {
			return err
		}
		sender, err := email.New(ctx, logger, cfg.AWSRegion)
		if err != nil {
			return err
		}
		exec := executors.New(logger, executors.Settings{
			Workspace:        cfg.Workspace,
			SSMPath:          cfg.SSMPath,
			FromEmail:        cfg.FromEmail,
			ReplyToEmail:     cfg.ReplyToEmail,
			FinalRecipients:  cfg.FinalRecipients,
			ReviewRecipients: cfg.ReviewRecipients,
		},
			alma.New(cfg.AlmaAPIURL, cfg.AlmaReadWriteKey, cfg.AlmaMaxRetries),
			sender, store, dialDropbox(cfg, logger), cmd.OutOrStdout())

		runType := "review"
		if sapOpts.finalRun {
			runType = "final"
		}
		logger.Info("starting SAP invoice process", "run", runType, "real", sapOpts.realRun, "date", date.Format("2006-01-02"))

		batch, err := exec.Prepare(ctx)
		if err != nil {
			return err
		}
		exec.Plan(batch)

		counts, err := exec.Run(ctx, batch, executors.Options{
			Date:     date,
			FinalRun: sapOpts.finalRun,
			RealRun:  sapOpts.realRun,
		})
		if err != nil {
			return err
		}
		logger.Info("SAP invoice process completed",
			"run", runType,
			"retrieved", batch.Total(),
			"processed", counts.Total,
			"sap", counts.SAP,
			"other_payment", counts.Other,
			"problems", len(batch.Problems),
		)
		return nil
	},
}

func dialDropbox(cfg *config.Config, logger *log.Logger) executors.DialFunc {
	return func(ctx context.Context) (executors.Uploader, error) {
		d, err := dropbox.Connect(ctx, logger, cfg.DropboxHost, cfg.DropboxPort, cfg.DropboxUser, cfg.DropboxKey)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

var sapSequenceHistoryCmd = &cobra.Command{
	Use:   "sap-sequence-history",
	Short: "Show previous values of the SAP sequence parameter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := params.New(ctx, cfg.AWSRegion, "")
		if err != nil {
			return err
		}
		entries, err := store.GetParameterHistory(ctx, cfg.SSMPath+sap.SequenceParameter)
		if err != nil {
			return err
		}

		t := table.New().Headers("VERSION", "VALUE", "MODIFIED")
		for _, e := range entries {
			t.Row(strconv.FormatInt(e.Version, 10), e.Value, e.LastModifiedDate)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func init() {
	sapInvoicesCmd.Flags().StringVar(&sapOpts.date, "date", "", "Run date (default today)")
	sapInvoicesCmd.Flags().BoolVar(&sapOpts.finalRun, "final-run", false, "Generate SAP files and, with --real-run, send them")
	sapInvoicesCmd.Flags().BoolVar(&sapOpts.realRun, "real-run", false, "Send email and files and update Alma and the parameter store")
}
