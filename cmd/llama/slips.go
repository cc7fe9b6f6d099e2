package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/email"
	"github.com/mitlibraries/llama/pkg/slips"
)

var slipsOpts struct {
	date       string
	recipients string
}

var ccSlipsCmd = &cobra.Command{
	Use:   "cc-slips",
	Short: "Email credit card slips for PO lines created on a date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Require("ALMA_API_URL", "ALMA_API_ACQ_READ_KEY", "SES_SEND_FROM_EMAIL"); err != nil {
			return err
		}
		recipients := firstNonEmpty(slipsOpts.recipients, cfg.ReviewRecipients)
		if recipients == "" {
			return fmt.Errorf("no recipients given (--recipients or SAP_REVIEW_RECIPIENT_EMAILS)")
		}

		date := previousDay(time.Now())
		if slipsOpts.date != "" {
			if date, err = runDate(slipsOpts.date, time.Now()); err != nil {
				return err
			}
		}
		created := date.Format("2006-01-02")

		ctx := cmd.Context()
		client := alma.New(cfg.AlmaAPIURL, cfg.AlmaReadKey, cfg.AlmaMaxRetries)
		lines, err := slips.CreditCardPOLines(ctx, client, created)
		if err != nil {
			return err
		}
		logger.Info("found credit card PO lines", "date", created, "count", len(lines))
		if len(lines) == 0 {
			logger.Info("no credit card slips to send")
			return nil
		}

		all := make([]slips.Slip, 0, len(lines))
		for _, line := range lines {
			s, err := slips.NewSlip(ctx, client, line)
			if err != nil {
				return err
			}
			all = append(all, s)
		}
		html, err := slips.Render(all)
		if err != nil {
			return err
		}

		sender, err := email.New(ctx, logger, cfg.AWSRegion)
		if err != nil {
			return err
		}
		id, err := sender.Send(ctx, email.Message{
			From:    cfg.FromEmail,
			To:      recipients,
			Subject: fmt.Sprintf("Credit card slips %s", created),
			Body:    fmt.Sprintf("%d credit card slip(s) for PO lines created on %s are attached.", len(all), created),
			Attachments: []email.Attachment{
				{Filename: created + "_cc_slips.htm", Content: []byte(html)},
			},
		})
		if err != nil {
			return err
		}
		logger.Info("credit card slips sent", "count", len(all), "message_id", id)
		return nil
	},
}

func init() {
	ccSlipsCmd.Flags().StringVar(&slipsOpts.date, "date", "", "Created date of the PO lines (default yesterday)")
	ccSlipsCmd.Flags().StringVar(&slipsOpts.recipients, "recipients", "", "Comma separated recipient addresses (default SAP_REVIEW_RECIPIENT_EMAILS)")
}
