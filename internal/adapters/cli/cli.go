// Package cli is the command-line adapter over ApplicationService.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/core"
	"seva-invoicing/internal/format"
)

// Migrator applies pending schema migrations and returns their names.
type Migrator func(ctx context.Context) ([]string, error)

// Deps is what the commands run against.
type Deps struct {
	Service app.ApplicationService
	Migrate Migrator
}

// Opener wires Deps for one command run. runMigrations is false for the
// migrate command, which applies them itself.
type Opener func(ctx context.Context, runMigrations bool) (*Deps, error)

// NewRootCommand builds the seva command tree over an already wired service.
func NewRootCommand(svc app.ApplicationService, migrate Migrator) *cobra.Command {
	return newRoot(&Deps{Service: svc, Migrate: migrate}, nil)
}

// NewLazyRootCommand builds the seva command tree and calls open only once a
// command is about to run, so help and usage output need no store.
func NewLazyRootCommand(open Opener) *cobra.Command {
	return newRoot(&Deps{}, open)
}

func newRoot(d *Deps, open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "seva",
		Short: "Seva Auto Sales invoicing",
		Long: `Create, search, report on, and print Seva Auto Sales invoices.

Invoices are stored in PostgreSQL when DATABASE_URL is set and in a local
JSON file (MOCK_STORE_PATH) otherwise.`,
		SilenceUsage: true,
	}
	if open != nil {
		root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			if !needsStore(cmd) {
				return nil
			}
			opened, err := open(cmd.Context(), cmd.Name() != "migrate")
			if err != nil {
				return err
			}
			*d = *opened
			return nil
		}
	}
	root.AddCommand(
		nextNumberCmd(d),
		listCmd(d),
		showCmd(d),
		createCmd(d),
		deleteCmd(d),
		reportCmd(d),
		exportCmd(d),
		newCmd(d),
		migrateCmd(d),
	)
	return root
}

func nextNumberCmd(d *Deps) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "next-number",
		Short: "Print the invoice number the next invoice would get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := d.Service.NextNumber(cmd.Context(), date)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.InvoiceNumber)
			if res.Fallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: existing numbers could not be read; this number may collide")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "invoice date (YYYY-MM-DD), defaults to today")
	return cmd
}

func listCmd(d *Deps) *cobra.Command {
	var (
		req    app.ListInvoicesRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "history"},
		Short:   "List invoices newest first, 20 per page",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := d.Service.ListInvoices(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printInvoiceList(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Search, "search", "s", "", "match customer, phone, vehicle, registration, or number")
	cmd.Flags().StringVarP(&req.Category, "category", "c", "", "only invoices whose items mention this work type")
	cmd.Flags().StringVar(&req.Sort, "sort", "", "invoice_date (default) or created_at")
	cmd.Flags().IntVarP(&req.Page, "page", "p", 0, "zero-based page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func showCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one invoice as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := d.Service.GetInvoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func createCmd(d *Deps) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save an invoice read as JSON from --file or stdin",
		Long: `Save an invoice. The JSON body has the same shape as POST /api/invoices.
When invoice_number or invoice_date is empty the next number for today is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}

			var inv core.Invoice
			if err := json.NewDecoder(in).Decode(&inv); err != nil {
				return fmt.Errorf("invalid invoice JSON: %w", err)
			}
			if inv.InvoiceNumber == "" || inv.InvoiceDate == "" {
				draft, err := d.Service.NewDraft(cmd.Context())
				if err != nil {
					return err
				}
				if inv.InvoiceDate == "" {
					inv.InvoiceDate = draft.Invoice.InvoiceDate
				}
				if inv.InvoiceNumber == "" {
					inv.InvoiceNumber = draft.Invoice.InvoiceNumber
				}
			}

			res, err := d.Service.CreateInvoice(cmd.Context(), app.CreateInvoiceRequest{Invoice: inv})
			if err != nil {
				return describeError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved invoice %s (%s) for %s: %s\n",
				res.Invoice.InvoiceNumber, res.Invoice.ID, res.Invoice.CustomerName, format.Currency(res.Invoice.TotalAmount))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the invoice from this file instead of stdin")
	return cmd
}

func deleteCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an invoice",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.Service.DeleteInvoice(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}
}

func reportCmd(d *Deps) *cobra.Command {
	var mode, date string
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"analytics"},
		Short:   "Revenue for the week or month containing --date",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := d.Service.GetAnalytics(cmd.Context(), mode, date)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "week", "week or month")
	cmd.Flags().StringVar(&date, "date", "", "any day inside the window (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func exportCmd(d *Deps) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the invoice PDF to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := d.Service.ExportInvoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = doc.Filename
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, doc.Filename)
			}
			if err := os.WriteFile(path, doc.Content, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(doc.Content))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "file or directory to write to, defaults to <number>.pdf")
	return cmd
}

func migrateCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := d.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}

// needsStore is false for cobra's own help and completion commands.
func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

// describeError expands validation failures into one line per field.
func describeError(err error) error {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	keys := make([]string, 0, len(verr.Fields))
	for k := range verr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("invoice rejected:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, verr.Fields[k])
	}
	return errors.New(b.String())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printInvoiceList(w io.Writer, res *app.InvoiceListResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-10s %-10s %-24s %-16s %-14s %12s\n", "NUMBER", "DATE", "CUSTOMER", "VEHICLE", "WORK", "TOTAL")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 91))
	for _, inv := range res.Invoices {
		fmt.Fprintf(w, "  %-10s %-10s %-24s %-16s %-14s %12s\n",
			inv.InvoiceNumber, inv.InvoiceDate, clip(inv.CustomerName, 24), clip(inv.CarModel, 16),
			clip(inv.Category, 14), format.Currency(inv.TotalAmount))
	}
	fmt.Fprintln(w, "  "+strings.Repeat("-", 91))
	fmt.Fprintf(w, "  page %d, %d of %d invoices", res.Page, len(res.Invoices), res.Total)
	if res.HasMore {
		fmt.Fprintf(w, " (more: --page %d)", res.Page+1)
	}
	fmt.Fprintln(w)
}

func printReport(w io.Writer, r *core.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 48))
	fmt.Fprintf(w, "  %-44s\n", strings.ToUpper(string(r.Mode))+" REPORT")
	fmt.Fprintf(w, "  %s to %s\n", r.Start, r.End)
	fmt.Fprintln(w, strings.Repeat("=", 48))
	for _, b := range r.Buckets {
		fmt.Fprintf(w, "  %-10s %4d invoices %20s\n", b.Label, b.Count, format.Currency(b.Total))
	}
	fmt.Fprintln(w, strings.Repeat("-", 48))
	fmt.Fprintf(w, "  %-27s %20s\n", "Total", format.Currency(r.Total))
	fmt.Fprintf(w, "  %-27s %20s\n", "Previous period", format.Currency(r.PreviousTotal))
	fmt.Fprintf(w, "  %-27s %19s%%\n", "Growth", r.Growth.StringFixed(2))
	fmt.Fprintf(w, "  %-27s %20d\n", "Active clients", r.ActiveClients)
	fmt.Fprintln(w, strings.Repeat("=", 48))
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
