package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/core"
	"seva-invoicing/internal/format"
)

func newCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create an invoice interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := &wizard{
				in:  bufio.NewReader(cmd.InOrStdin()),
				out: cmd.OutOrStdout(),
			}
			return w.run(cmd, d.Service)
		},
	}
}

// wizard prompts for an invoice one field at a time.
type wizard struct {
	in  *bufio.Reader
	out io.Writer
	eof bool
}

func (w *wizard) ask(prompt, def string) string {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}
	raw, err := w.in.ReadString('\n')
	if err != nil {
		w.eof = true
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	return raw
}

func (w *wizard) run(cmd *cobra.Command, svc app.ApplicationService) error {
	ctx := cmd.Context()
	draft, err := svc.NewDraft(ctx)
	if err != nil {
		return err
	}
	if draft.NumberFallback {
		fmt.Fprintln(w.out, "Warning: existing invoice numbers could not be read; check the number below.")
	}

	inv := draft.Invoice
	inv.InvoiceDate = w.ask("Invoice date (YYYY-MM-DD)", inv.InvoiceDate)
	if inv.InvoiceDate != draft.Invoice.InvoiceDate {
		next, err := svc.NextNumber(ctx, inv.InvoiceDate)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = next.InvoiceNumber
	}
	inv.InvoiceNumber = w.ask("Invoice number", inv.InvoiceNumber)
	inv.CustomerName = w.ask("Customer name", "")
	inv.CustomerPhone = w.ask("Customer phone", "")
	inv.CustomerAddress = w.ask("Customer address (optional)", "")
	inv.BillingAddress = w.ask("Billing address", inv.CustomerAddress)
	inv.CarModel = w.ask("Vehicle model", "")
	inv.RegNo = w.ask("Registration number", "")
	inv.EngineNumber = w.ask("Engine number (optional)", "")
	inv.ChassisNumber = w.ask("Chassis number (optional)", "")

	fmt.Fprintln(w.out, "Enter line items. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintln(w.out, "Format per line: <selling-price> [mrp] <description>")
	fmt.Fprintln(w.out, "  Example: 15000 Side wheel attachment")
	fmt.Fprintln(w.out, "  Example: 4500 5200 Auto clutch kit")
	n := 1
items:
	for !w.eof {
		raw := w.ask(fmt.Sprintf("  Item %d", n), "")
		switch strings.ToLower(raw) {
		case "cancel":
			fmt.Fprintln(w.out, "Invoice not created.")
			return nil
		case "done":
			break items
		case "":
			continue
		}
		item, err := parseItem(raw)
		if err != nil {
			fmt.Fprintln(w.out, "  "+err.Error())
			continue
		}
		inv.Items = append(inv.Items, item)
		n++
	}
	if len(inv.Items) == 0 {
		fmt.Fprintln(w.out, "No items entered. Invoice not created.")
		return nil
	}
	inv.TotalAmount = core.SumItems(inv.Items)
	inv.Notes = w.ask("Notes (optional)", "")

	fmt.Fprintf(w.out, "\nTotal %s (%s)\n", format.Currency(inv.TotalAmount), format.AmountInWords(inv.TotalAmount))
	if answer := strings.ToLower(w.ask("Save this invoice? (y/n)", "y")); answer != "y" && answer != "yes" {
		fmt.Fprintln(w.out, "Invoice not created.")
		return nil
	}

	res, err := svc.CreateInvoice(ctx, app.CreateInvoiceRequest{DraftID: draft.DraftID, Invoice: inv})
	if err != nil {
		return describeError(err)
	}
	fmt.Fprintf(w.out, "Saved invoice %s (ID: %s)\n", res.Invoice.InvoiceNumber, res.Invoice.ID)
	fmt.Fprintf(w.out, "Use 'seva export %s' to print it.\n", res.Invoice.ID)
	return nil
}

// parseItem reads "<selling-price> [mrp] <description>".
func parseItem(raw string) (core.LineItem, error) {
	parts := strings.Fields(raw)
	if len(parts) < 2 {
		return core.LineItem{}, fmt.Errorf("invalid format, use: <selling-price> [mrp] <description>")
	}
	price, err := decimal.NewFromString(parts[0])
	if err != nil || !price.IsPositive() {
		return core.LineItem{}, fmt.Errorf("invalid selling price %q", parts[0])
	}
	item := core.LineItem{SellingPrice: price, Amount: price}

	rest := parts[1:]
	if mrp, err := decimal.NewFromString(rest[0]); err == nil && len(rest) > 1 {
		if mrp.IsNegative() {
			return core.LineItem{}, fmt.Errorf("invalid MRP %q", rest[0])
		}
		item.MRP = mrp
		rest = rest[1:]
	}
	item.Description = strings.Join(rest, " ")
	return item, nil
}
