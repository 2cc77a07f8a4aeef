package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/conf"
	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/editor"
	"github.com/zeptools/invoicer/export"
	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/pdfs"
	"github.com/zeptools/invoicer/preview"
)

// newRasterizer builds the rasterizer of the export command and its closer.
var newRasterizer = func(c *conf.Core) (capture.Rasterizer, func() error) {
	r := capture.NewRodRasterizer(c.RodConf())
	return r, r.Close
}

// localCore prepares the configured storage for shell use. No services are started.
func localCore(cCtx *cli.Context) (*conf.Core, error) {
	root, err := filepath.Abs(cCtx.String("root"))
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if cCtx.Bool("verbose") {
		level = slog.LevelDebug
	}
	logging.SetupWithLevel(os.Stderr, level)

	c := &conf.Core{AppName: "invoicer", AppRoot: root}
	if err = c.LoadAppConf(); err != nil {
		return nil, err
	}
	if err = c.PrepareKVDatabase(); err != nil {
		return nil, err
	}
	if err = c.PrepareSQLDatabases(); err != nil {
		_ = c.ResourceCleanUp()
		return nil, err
	}
	return c, nil
}

// withLocalSession runs fn against the single local invoice.
func withLocalSession(cCtx *cli.Context, fn func(ctx context.Context, c *conf.Core, sess *editor.Session) error) (err error) {
	c, err := localCore(cCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.ResourceCleanUp(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	ctx := cCtx.Context
	store, err := c.InvoiceStore(ctx)
	if err != nil {
		return err
	}
	sess, err := editor.Open(ctx, store, editor.CLIKey, editor.Options{})
	if err != nil {
		return err
	}
	return fn(ctx, c, sess)
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "start a new invoice from the default template",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite an existing invoice"},
		},
		Action: func(cCtx *cli.Context) error {
			return withLocalSession(cCtx, func(ctx context.Context, _ *conf.Core, sess *editor.Session) error {
				_, found, err := sess.Store.Load(ctx, sess.Key)
				if err != nil {
					return err
				}
				if found && !cCtx.Bool("force") {
					return errors.New("an invoice already exists, use --force to start over")
				}
				if err = sess.Reset(ctx); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cCtx.App.Writer, "invoice %s created\n", sess.Snapshot().InvoiceNumber)
				return err
			})
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "set an invoice field, e.g. taxRate 10, sender.name Acme, client.email a@b.c",
		ArgsUsage: "<field> <value>",
		Action: func(cCtx *cli.Context) error {
			if cCtx.NArg() != 2 {
				return cli.ShowSubcommandHelp(cCtx)
			}
			return withLocalSession(cCtx, func(ctx context.Context, _ *conf.Core, sess *editor.Session) error {
				if err := applySet(ctx, sess, cCtx.Args().Get(0), cCtx.Args().Get(1)); err != nil {
					return err
				}
				return printTotals(cCtx.App.Writer, sess.Snapshot())
			})
		},
	}
}

// applySet routes "field", "sender.field" and "client.field" to their typed updates.
func applySet(ctx context.Context, sess *editor.Session, field, value string) error {
	target, name, dotted := strings.Cut(field, ".")
	if !dotted {
		u, err := invoice.ParseInvoiceUpdate(field, value)
		if err != nil {
			return err
		}
		return sess.SetField(ctx, u)
	}
	switch target {
	case "sender":
		u, err := invoice.ParseSenderUpdate(name, value)
		if err != nil {
			return err
		}
		return sess.SetSenderField(ctx, u)
	case "client":
		u, err := invoice.ParsePartyUpdate(name, value)
		if err != nil {
			return err
		}
		return sess.SetClientField(ctx, u)
	}
	return fmt.Errorf("%w: %q", invoice.ErrUnknownField, field)
}

func itemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "edit line items",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "append a blank line item",
				Action: func(cCtx *cli.Context) error {
					return withLocalSession(cCtx, func(ctx context.Context, _ *conf.Core, sess *editor.Session) error {
						item, err := sess.AddItem(ctx)
						if err != nil {
							return err
						}
						_, err = fmt.Fprintf(cCtx.App.Writer, "item %d added (id %s)\n", len(sess.Snapshot().Items)-1, item.ID)
						return err
					})
				},
			},
			{
				Name:      "set",
				Usage:     "set a line item field: id, description, quantity or rate",
				ArgsUsage: "<index> <field> <value>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 3 {
						return cli.ShowSubcommandHelp(cCtx)
					}
					index, err := parseIndex(cCtx.Args().Get(0))
					if err != nil {
						return err
					}
					u, err := invoice.ParseItemUpdate(cCtx.Args().Get(1), cCtx.Args().Get(2))
					if err != nil {
						return err
					}
					return withLocalSession(cCtx, func(ctx context.Context, _ *conf.Core, sess *editor.Session) error {
						if err := sess.SetItemField(ctx, index, u); err != nil {
							return err
						}
						return printTotals(cCtx.App.Writer, sess.Snapshot())
					})
				},
			},
			{
				Name:      "rm",
				Usage:     "remove a line item; the last one stays",
				ArgsUsage: "<index>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return cli.ShowSubcommandHelp(cCtx)
					}
					index, err := parseIndex(cCtx.Args().Get(0))
					if err != nil {
						return err
					}
					return withLocalSession(cCtx, func(ctx context.Context, _ *conf.Core, sess *editor.Session) error {
						if err := sess.RemoveItem(ctx, index); err != nil {
							return err
						}
						return printTotals(cCtx.App.Writer, sess.Snapshot())
					})
				},
			},
		},
	}
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid item index %q", s)
	}
	return i, nil
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "print the invoice",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the persisted JSON document"},
		},
		Action: func(cCtx *cli.Context) error {
			return withLocalSession(cCtx, func(_ context.Context, _ *conf.Core, sess *editor.Session) error {
				inv := sess.Snapshot()
				if cCtx.Bool("json") {
					enc := json.NewEncoder(cCtx.App.Writer)
					enc.SetIndent("", "  ")
					return enc.Encode(inv)
				}
				return printInvoice(cCtx.App.Writer, inv)
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export the invoice as PDF",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory"},
		},
		Action: func(cCtx *cli.Context) error {
			return withLocalSession(cCtx, func(ctx context.Context, c *conf.Core, sess *editor.Session) error {
				renderer, err := preview.NewRenderer(c.Host)
				if err != nil {
					return err
				}
				rasterizer, closeRasterizer := newRasterizer(c)
				defer func() {
					if err := closeRasterizer(); err != nil {
						logging.Component("main").Warn("close rasterizer", "err", err)
					}
				}()
				exp := export.New(rasterizer, pdfs.NewAssembler(),
					&delivery.Deliverer{Store: delivery.NewMemoryStore(time.Minute)},
					c.CaptureOptions(), nil)

				inv := sess.Snapshot()
				surface, err := renderer.Render(inv)
				if err != nil {
					return err
				}
				sink := &delivery.FileSink{Dir: cCtx.String("out")}
				if err = exp.Export(ctx, surface, delivery.FileName(inv.InvoiceNumber), sink); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cCtx.App.Writer, sink.Path)
				return err
			})
		},
	}
}

func printInvoice(w io.Writer, inv *invoice.Invoice) error {
	fmt.Fprintf(w, "Invoice %s  (%s)\n", inv.InvoiceNumber, inv.Currency)
	fmt.Fprintf(w, "Date %s  Due %s\n", inv.Date, inv.DueDate)
	fmt.Fprintf(w, "From: %s <%s>\n", inv.Sender.Name, inv.Sender.Email)
	fmt.Fprintf(w, "To:   %s <%s>\n\n", inv.Client.Name, inv.Client.Email)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDescription\tQty\tRate\tAmount\t")
	for i, item := range inv.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", i, item.Description, item.Quantity,
			invoice.FormatAmount(item.Rate, inv.Currency), invoice.FormatAmount(item.Amount, inv.Currency))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return printTotals(w, inv)
}

func printTotals(w io.Writer, inv *invoice.Invoice) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Subtotal\t%s\t\n", invoice.FormatAmount(inv.Subtotal, inv.Currency))
	if inv.TaxRate.IsPositive() {
		fmt.Fprintf(tw, "Tax (%s%%)\t%s\t\n", inv.TaxRate, invoice.FormatAmount(inv.TaxAmount, inv.Currency))
	}
	if inv.DiscountRate.IsPositive() {
		fmt.Fprintf(tw, "Discount (%s%%)\t%s\t\n", inv.DiscountRate, invoice.FormatAmount(inv.DiscountAmount.Neg(), inv.Currency))
	}
	fmt.Fprintf(tw, "Total\t%s\t\n", invoice.FormatAmount(inv.Total, inv.Currency))
	return tw.Flush()
}
