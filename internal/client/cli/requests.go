package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taxdesk/filing-client/internal/client"
	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/core/validation"
)

const timeLayout = "2006-01-02 15:04"

func (c commands) submitCmd() *cobra.Command {
	var (
		form   client.RequestForm
		taxID  string
		plan   string
		docs   []string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new filing request",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			form.SetTaxID(taxID)
			form.ServiceLevel = domain.ServiceLevel(strings.ToLower(strings.TrimSpace(plan)))

			uploads := make([]ports.Upload, 0, len(docs))
			for _, path := range docs {
				u, err := validation.OpenFile(path)
				if err != nil {
					return fmt.Errorf("attach %s: %w", path, err)
				}
				uploads = append(uploads, u)
			}
			if len(uploads) > 0 {
				if err := form.Attachments.Add(uploads...); err != nil {
					return err
				}
			}

			sub := a.submission()
			if err := sub.Validate(&form); err != nil {
				return err
			}
			p, _ := form.Plan()
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Form is valid: %s plan, $%.2f, %d document(s)\n", p.Level, p.Price, form.Attachments.Len())
				return nil
			}

			receipt, err := sub.Submit(cmd.Context(), &form)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Request submitted\nconfirmation: %s\nstatus:       %s\nplan:         %s ($%.2f)\n",
				receipt.ConfirmationNumber, receipt.Status, p.Level, p.Price)
			if p.BonusEligible() {
				fmt.Fprintln(out, "This plan qualifies for the refund bonus.")
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVar(&form.FullName, "full-name", "", "taxpayer full name")
	f.StringVar(&taxID, "ssn", "", "social security number, digits or XXX-XX-XXXX")
	f.StringVar(&form.BirthDate, "birth-date", "", "birth date, YYYY-MM-DD")
	f.StringVar(&form.Email, "email", "", "contact email")
	f.StringVar(&form.Phone, "phone", "", "contact phone")
	f.StringVar(&form.Address, "address", "", "mailing address")
	f.StringVar(&form.BankName, "bank", "", "bank name")
	f.StringVar((*string)(&form.AccountType), "account-type", string(domain.AccountChecking), "Savings or Checking")
	f.StringVar(&form.AccountNumber, "account-number", "", "bank account number")
	f.StringVar(&form.RoutingNumber, "routing-number", "", "bank routing number")
	f.StringVar(&form.PaymentMethod, "payment", "", "payment method")
	f.StringVar(&plan, "plan", "", "standard or premium (required)")
	f.StringArrayVar(&docs, "doc", nil, "PDF document to attach (repeatable)")
	f.BoolVar(&dryRun, "dry-run", false, "validate the form without submitting")
	return cmd
}

func (c commands) requestsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List your filing requests",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			tr := a.tracker()
			if refresh {
				if err := tr.Refresh(cmd.Context()); err != nil {
					return err
				}
			}
			list, err := tr.ListMine(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No requests yet")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CONFIRMATION\tSTATUS\tPROGRESS\tPLAN\tCREATED")
			for i := range list {
				r := &list[i]
				t := tr.Track(r)
				fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n",
					r.ConfirmationNumber, r.Status, t.Percent(), r.ServiceLevel, r.CreatedAt.Local().Format(timeLayout))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached list")
	return cmd
}

func (c commands) requestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <confirmation>",
		Short: "Show one filing request and its progress",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, a *App, args []string) error {
			tr := a.tracker()
			r, err := tr.Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			printRequest(cmd, r, tr.Track(r), a.session.IsAdmin())
			return nil
		}),
	}
}

// printRequest renders one request. Internal notes are shown to admins only.
func printRequest(cmd *cobra.Command, r *domain.FilingRequest, t client.Tracking, admin bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "confirmation: %s\n", r.ConfirmationNumber)
	fmt.Fprintf(out, "name:         %s\n", r.Personal.FullName)
	fmt.Fprintf(out, "plan:         %s ($%.2f)\n", r.ServiceLevel, r.Price)
	fmt.Fprintf(out, "status:       %s\n", r.Status)
	if t.Known {
		fmt.Fprintf(out, "progress:     step %d of %d (%d%%)\n", t.Step, t.Total, t.Percent())
	} else {
		fmt.Fprintf(out, "progress:     waiting for review (0%%)\n")
	}
	if r.PaymentDate != nil {
		fmt.Fprintf(out, "payment date: %s\n", r.PaymentDate.Format("2006-01-02"))
	}

	if len(r.StatusHistory) > 0 {
		fmt.Fprintln(out, "\nhistory:")
		for _, h := range r.StatusHistory {
			fmt.Fprintf(out, "  %s  %s  %s", h.Timestamp.Local().Format(timeLayout), h.Status, h.Description)
			if h.Comment != "" {
				fmt.Fprintf(out, " (%s)", h.Comment)
			}
			fmt.Fprintln(out)
		}
	}
	if len(r.Documents) > 0 {
		fmt.Fprintln(out, "\ndocuments:")
		for _, d := range r.Documents {
			fmt.Fprintf(out, "  %s  %d bytes\n", d.Name, d.Size)
		}
	}
	if admin && len(r.AdminNotes) > 0 {
		fmt.Fprintln(out, "\nnotes:")
		for _, n := range r.AdminNotes {
			fmt.Fprintf(out, "  %s  %s\n", n.Timestamp.Local().Format(timeLayout), n.Note)
		}
	}
}
