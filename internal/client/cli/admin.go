package cli

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taxdesk/filing-client/internal/client"
	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

func (c commands) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer filing requests",
	}
	cmd.AddCommand(
		c.adminListCmd(),
		c.adminBrowseCmd(),
		c.adminStatusCmd(),
		c.adminNoteCmd(),
		c.adminDeleteCmd(),
		c.adminStatsCmd(),
		c.adminVerifyCmd(),
	)
	return cmd
}

func (c commands) adminListCmd() *cobra.Command {
	var (
		status string
		search string
		page   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests with optional search, status filter and page",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			con := a.console(nil)
			defer con.Close()
			ctx := cmd.Context()

			loaded := false
			if search = strings.TrimSpace(search); search != "" {
				con.SetSearch(search)
				con.FlushSearch()
				if v := con.View(); v.Err != nil {
					return v.Err
				}
				loaded = true
			}
			if status != "" && status != domain.CountAll {
				if err := con.SetStatus(ctx, domain.AdminStatus(status)); err != nil {
					return err
				}
				loaded = true
			}
			if page > 1 {
				if !loaded {
					if err := con.Reload(ctx); err != nil {
						return err
					}
				}
				if err := con.SetPage(ctx, page); err != nil {
					return err
				}
				loaded = true
			}
			if !loaded {
				if err := con.Reload(ctx); err != nil {
					return err
				}
			}
			return printAdminView(cmd.OutOrStdout(), con.View())
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by administrative status")
	cmd.Flags().StringVar(&search, "search", "", "search by name, email or confirmation number")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

const browseHelp = `commands:
  /<text>         search (sent after typing pauses)
  status <name>   filter by status, "all" to clear
  page <n>        go to page n
  n, p            next or previous page
  r               reload
  q               quit`

func (c commands) adminBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse requests interactively",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			out := cmd.OutOrStdout()
			var mu sync.Mutex
			con := a.console(func(v client.AdminView) {
				mu.Lock()
				defer mu.Unlock()
				if v.Err != nil {
					fmt.Fprintln(out, Message(v.Err))
					return
				}
				_ = printAdminView(out, v)
			})
			defer con.Close()

			if err := con.Reload(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, browseHelp)
			return browse(cmd, con, bufio.NewScanner(cmd.InOrStdin()), &mu)
		}),
	}
}

// browse runs the console loop until quit or end of input.
func browse(cmd *cobra.Command, con *client.AdminConsole, sc *bufio.Scanner, mu *sync.Mutex) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	report := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		fmt.Fprintln(out, Message(err))
		mu.Unlock()
	}

	searches := make(chan string)
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		con.WatchSearch(ctx, searches)
	}()
	defer func() {
		close(searches)
		<-watched
	}()

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			searches <- strings.TrimSpace(line[1:])
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "q", "quit", "exit":
			return nil
		case "help", "?":
			mu.Lock()
			fmt.Fprintln(out, browseHelp)
			mu.Unlock()
		case "r", "reload":
			report(con.Reload(ctx))
		case "n", "next":
			report(con.SetPage(ctx, con.Query().Page+1))
		case "p", "prev":
			report(con.SetPage(ctx, con.Query().Page-1))
		case "page":
			if len(fields) != 2 {
				report(fmt.Errorf("usage: page <n>"))
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				report(fmt.Errorf("page must be a number"))
				continue
			}
			report(con.SetPage(ctx, n))
		case "status":
			s := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
			if s == domain.CountAll {
				s = ""
			}
			report(con.SetStatus(ctx, domain.AdminStatus(s)))
		default:
			report(fmt.Errorf("unknown command %q, type help", fields[0]))
		}
	}
	return sc.Err()
}

func (c commands) adminStatusCmd() *cobra.Command {
	var (
		status      string
		comment     string
		paymentDate string
	)
	cmd := &cobra.Command{
		Use:   "status <confirmation>",
		Short: "Change the status of a request",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, a *App, args []string) error {
			u := domain.StatusUpdate{
				Status:  domain.AdminStatus(strings.TrimSpace(status)),
				Comment: comment,
			}
			if paymentDate != "" {
				d, err := time.Parse("2006-01-02", paymentDate)
				if err != nil {
					return fmt.Errorf("payment date must be YYYY-MM-DD: %w", err)
				}
				u.PaymentDate = &d
			}

			con := a.console(nil)
			defer con.Close()
			r, err := con.UpdateStatus(cmd.Context(), args[0], u)
			if r == nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", r.ConfirmationNumber, r.Status)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "new administrative status")
	cmd.Flags().StringVar(&comment, "comment", "", "comment recorded in the history")
	cmd.Flags().StringVar(&paymentDate, "payment-date", "", "payment date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func (c commands) adminNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <confirmation> <text>...",
		Short: "Add an internal note to a request",
		Args:  cobra.MinimumNArgs(2),
		RunE: c.run(func(cmd *cobra.Command, a *App, args []string) error {
			con := a.console(nil)
			defer con.Close()
			r, err := con.AddNote(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if r == nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note added to %s (%d notes)\n", r.ConfirmationNumber, len(r.AdminNotes))
			return nil
		}),
	}
}

func (c commands) adminDeleteCmd() *cobra.Command {
	var confirm string
	cmd := &cobra.Command{
		Use:   "delete <confirmation>",
		Short: "Delete a request permanently",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, a *App, args []string) error {
			id := args[0]
			typed := confirm
			if typed == "" {
				var err error
				p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				typed, err = p.Line(fmt.Sprintf("Type %s to confirm deletion", id))
				if err != nil {
					return err
				}
			}

			con := a.console(nil)
			defer con.Close()
			if err := con.Delete(cmd.Context(), id, typed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "confirmation number typed back, skips the prompt")
	return cmd
}

func (c commands) adminStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			con := a.console(nil)
			defer con.Close()
			s, err := con.Statistics(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "total requests\t%d\n", s.TotalRequests)
			fmt.Fprintf(w, "total revenue\t$%.2f\n", s.TotalRevenue)
			fmt.Fprintln(w, "\nby status\t")
			for _, k := range sortedKeys(s.ByStatus) {
				fmt.Fprintf(w, "  %s\t%d\n", k, s.ByStatus[k])
			}
			fmt.Fprintln(w, "\nby plan\t")
			for _, k := range sortedKeys(s.ByServiceLevel) {
				fmt.Fprintf(w, "  %s\t%d\n", k, s.ByServiceLevel[k])
			}
			if len(s.Monthly) > 0 {
				fmt.Fprintln(w, "\nby month\t")
				for _, m := range s.Monthly {
					fmt.Fprintf(w, "  %s\t%d\n", m.Month, m.Count)
				}
			}
			return w.Flush()
		}),
	}
}

func (c commands) adminVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Confirm the backend grants admin access",
		RunE: c.run(func(cmd *cobra.Command, a *App, _ []string) error {
			con := a.console(nil)
			defer con.Close()
			if err := con.Verify(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admin access confirmed")
			return nil
		}),
	}
}

func printAdminView(out io.Writer, v client.AdminView) error {
	if v.Err != nil {
		return v.Err
	}
	p := v.Page
	if p == nil {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(p.Requests) == 0 {
		fmt.Fprintln(w, "No requests match")
	} else {
		fmt.Fprintln(w, "CONFIRMATION\tNAME\tEMAIL\tSTATUS\tPLAN\tCREATED")
		for _, r := range p.Requests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ConfirmationNumber, r.Personal.FullName, r.Personal.Email,
				r.Status, r.ServiceLevel, r.CreatedAt.Local().Format(timeLayout))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "page %d of %d, %d matching\n", p.Page, p.TotalPages, p.Total)
	fmt.Fprintln(out, formatCounts(p))
	return nil
}

// formatCounts renders the per-status counts in the order the backend lists
// its statuses.
func formatCounts(p *ports.AdminPage) string {
	parts := []string{fmt.Sprintf("%s: %d", domain.CountAll, p.Counts[domain.CountAll])}
	for _, s := range p.Statuses {
		parts = append(parts, fmt.Sprintf("%s: %d", s, p.Counts[string(s)]))
	}
	return strings.Join(parts, " | ")
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
