package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holvikit/holvi/internal/auditlog"
	"github.com/holvikit/holvi/internal/categories"
	"github.com/holvikit/holvi/internal/invoicing"
	"github.com/holvikit/holvi/internal/itemcsv"
	"github.com/holvikit/holvi/internal/render"
)

func newInvoiceCommand(opts *rootOptions) *cobra.Command {
	invoiceCmd := &cobra.Command{
		Use:   "invoice",
		Short: "Invoice operations",
	}
	invoiceCmd.AddCommand(newInvoiceListCommand(opts))
	invoiceCmd.AddCommand(newInvoiceGetCommand(opts))
	invoiceCmd.AddCommand(newInvoiceCreateCommand(opts))
	invoiceCmd.AddCommand(newInvoiceSendCommand(opts))
	invoiceCmd.AddCommand(newInvoicePDFCommand(opts))
	return invoiceCmd
}

// withSession opens a session for the duration of fn.
func withSession(opts *rootOptions, fn func(s *session) error) (err error) {
	s, err := opts.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func newInvoiceListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List invoices in the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(s *session) error {
				invoices, err := s.api.ListInvoices(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tNUMBER\tSTATUS\tDUE\tTOTAL\tSUBJECT")
				for _, inv := range invoices {
					status, _ := inv.Field("status")
					if status == nil {
						status = ""
					}
					fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s %s\t%s\n",
						inv.Code, inv.Number, status,
						inv.DueDate.Format(invoicing.DateLayout),
						inv.Total().StringFixedBank(2), inv.Currency,
						inv.Subject)
				}
				return tw.Flush()
			})
		},
	}
}

func newInvoiceGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Print an invoice as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(s *session) error {
				inv, err := s.api.GetInvoice(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(inv.Document())
			})
		},
	}
}

func newInvoiceCreateCommand(opts *rootOptions) *cobra.Command {
	var subject, itemsPath, currency string
	var receiver invoicing.Receiver

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice from an item CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(itemsPath)
			if err != nil {
				return fmt.Errorf("opening items: %w", err)
			}
			defer f.Close()

			rows, err := itemcsv.Read(f)
			if err != nil {
				return fmt.Errorf("%s: %w", itemsPath, err)
			}

			return withSession(opts, func(s *session) error {
				inv := s.api.Draft()
				inv.Subject = subject
				inv.Receiver = receiver
				if currency != "" {
					inv.Currency = currency
				}
				for _, row := range rows {
					item := inv.AddItem(row.Description, row.Net)
					item.Gross = row.Gross
					if row.Category != "" {
						item.Category = categories.Income(s.api.Categories(), map[string]any{"code": row.Category})
					}
				}

				saved, err := inv.Save(cmd.Context())
				if err != nil {
					return err
				}
				s.log.Info("Invoice created", zap.String("code", saved.Code), zap.Int("items", len(saved.Items)))

				details := fmt.Sprintf("%d items, total %s %s", len(saved.Items), saved.Total().StringFixedBank(2), saved.Currency)
				if err := s.audit(auditlog.ActionSave, saved, details); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created invoice %s (number %s, total %s %s)\n",
					saved.Code, saved.Number, saved.Total().StringFixedBank(2), saved.Currency)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "invoice subject (required)")
	_ = cmd.MarkFlagRequired("subject")
	cmd.Flags().StringVar(&itemsPath, "items", "", "CSV with columns "+itemcsv.Header+" (required)")
	_ = cmd.MarkFlagRequired("items")
	cmd.Flags().StringVar(&currency, "currency", "", "currency, defaults to the configured one")
	cmd.Flags().StringVar(&receiver.Name, "receiver-name", "", "receiver name")
	cmd.Flags().StringVar(&receiver.Email, "receiver-email", "", "receiver email")
	cmd.Flags().StringVar(&receiver.Street, "receiver-street", "", "receiver street address")
	cmd.Flags().StringVar(&receiver.City, "receiver-city", "", "receiver city")
	cmd.Flags().StringVar(&receiver.Postcode, "receiver-postcode", "", "receiver postcode")
	cmd.Flags().StringVar(&receiver.Country, "receiver-country", "", "receiver country code")

	return cmd
}

func newInvoiceSendCommand(opts *rootOptions) *cobra.Command {
	var noEmail bool

	cmd := &cobra.Command{
		Use:   "send <code>",
		Short: "Mark an invoice as sent and email it to the receiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(s *session) error {
				inv, err := s.api.GetInvoice(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if _, err := inv.Send(cmd.Context(), !noEmail); err != nil {
					return err
				}
				s.log.Info("Invoice sent", zap.String("code", inv.Code), zap.Bool("send_email", !noEmail))

				if err := s.audit(auditlog.ActionSend, inv, fmt.Sprintf("send_email=%t", !noEmail)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent invoice %s\n", inv.Code)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noEmail, "no-email", false, "mark as sent without emailing the receiver")

	return cmd
}

func newInvoicePDFCommand(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "pdf <code>",
		Short: "Render an invoice to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(s *session) error {
				inv, err := s.api.GetInvoice(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				path := out
				if path == "" {
					path = inv.Code + ".pdf"
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				if err := render.PDF(f, inv); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file, defaults to <code>.pdf")

	return cmd
}
