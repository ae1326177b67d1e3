package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fireflyiii/internal/amqp"
	"fireflyiii/internal/core"
	applog "fireflyiii/internal/log"
	ports "fireflyiii/internal/sheets"
	gsheet "fireflyiii/internal/sheets/google"
	"fireflyiii/internal/sheets/memory"
	"fireflyiii/internal/services"
)

type importOptions struct {
	from   string
	file   string
	queue  bool
	dryRun bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import expenses from a Google Sheet or a file as withdrawals",
		Long: `Reads expenses, records each one in the local import ledger and stores it
in Firefly III. Expenses already imported are skipped. With --queue the
ledger rows are published for firefly-worker instead of stored directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runImport(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "file", "expense source: sheet or file")
	f.StringVarP(&opts.file, "file", "f", "", "JSON or YAML expenses file (with --from file)")
	f.BoolVar(&opts.queue, "queue", false, "publish to AMQP instead of storing directly")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the summary without importing")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, opts importOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := a.logger.WithComponent(applog.ComponentImport)

	source, err := a.expenseSource(cmd, opts)
	if err != nil {
		return err
	}
	expenses, err := source.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("read expenses: %w", err)
	}

	printSummary(out, core.Summarize(expenses))
	if opts.dryRun || len(expenses) == 0 {
		return nil
	}

	ledger, err := InitLedger(a.cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	icfg := services.DefaultImportConfig()
	icfg.DefaultSource = a.cfg.ImportSourceAccount
	icfg.DefaultCurrency = a.cfg.ImportCurrency
	icfg.ApplyRules = a.cfg.ImportApplyRules

	svcOpts := []services.Option{services.WithLogger(logger)}
	if opts.queue {
		if a.cfg.AMQPURL == "" {
			return errors.New("--queue needs AMQP_URL")
		}
		client, err := amqp.NewClient(ctx, a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue,
			logger.WithComponent(applog.ComponentAMQP).Logger)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer client.Close()
		svcOpts = append(svcOpts, services.WithPublisher(client))
	}

	svc := services.NewImportService(ledger, a.client, icfg, svcOpts...)
	res, err := svc.Import(ctx, expenses)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	printImportResult(cmd.ErrOrStderr(), res)
	if res.Failed > 0 || len(res.Invalid) > 0 {
		return fmt.Errorf("%d failed, %d invalid", res.Failed, len(res.Invalid))
	}
	return nil
}

func (a *app) expenseSource(cmd *cobra.Command, opts importOptions) (ports.ExpenseSource, error) {
	switch opts.from {
	case "file":
		if opts.file == "" {
			return nil, errors.New("--from file needs --file")
		}
		return memory.LoadFile(opts.file)
	case "sheet":
		if err := a.cfg.ValidateSheets(); err != nil {
			return nil, err
		}
		return gsheet.New(cmd.Context(), gsheet.Config{
			SpreadsheetID:   a.cfg.GoogleSpreadsheetID,
			SheetName:       a.cfg.GoogleSheetName,
			CredentialsJSON: a.cfg.GoogleServiceAccountJSON,
			CredentialsFile: a.cfg.GoogleServiceAccountFile,
		}, a.logger.WithComponent(applog.ComponentSheets).Logger)
	default:
		return nil, fmt.Errorf("unknown source %q: must be sheet or file", opts.from)
	}
}

func printSummary(w io.Writer, s core.Summary) {
	fmt.Fprintf(w, "Expenses: %d  Total: %s\n", s.Count, core.FormatAmount(s.Total))
	if len(s.ByCategory) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range s.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\t\n", c.Name, core.FormatAmount(c.Amount))
	}
	tw.Flush()
}

func printImportResult(w io.Writer, res services.ImportResult) {
	for _, err := range res.Invalid {
		printErr(w, "Skipped: %v", err)
	}
	if res.Stored > 0 {
		printOK(w, "%d stored", res.Stored)
	}
	if res.Queued > 0 {
		printOK(w, "%d queued", res.Queued)
	}
	if res.Duplicates > 0 {
		printWarn(w, "%d already imported", res.Duplicates)
	}
	if res.Pending > 0 {
		printWarn(w, "%d left pending for firefly-worker", res.Pending)
	}
	if res.Failed > 0 {
		printErr(w, "%d failed", res.Failed)
	}
}
