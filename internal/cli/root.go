package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fireflyiii/internal/config"
	applog "fireflyiii/internal/log"
	"fireflyiii/pkg/firefly"
)

// skipBootstrap marks commands that run without configuration.
const skipBootstrap = "skip-bootstrap"

type app struct {
	envFile string
	output  string

	cfg    *config.Config
	logger *applog.Logger
	client *firefly.Client
}

// NewRootCmd builds the fireflyctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "fireflyctl",
		Short:         "Command line client for the Firefly III API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipBootstrap] != "" {
				return nil
			}
			return a.bootstrap(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")

	root.AddCommand(
		newAccountsCmd(a),
		newCurrenciesCmd(a),
		newTransactionsCmd(a),
		newDataCmd(a),
		newSnapshotCmd(a),
		newImportCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) bootstrap(cmd *cobra.Command) error {
	if err := LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger, err := SetupLogger(cfg, applog.ComponentCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	client, err := NewFireflyClient(cfg, logger)
	if err != nil {
		return err
	}

	a.cfg, a.logger, a.client = cfg, logger, client
	return nil
}

// render writes v to w as indented JSON or YAML.
func render(w io.Writer, v firefly.Value, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v.Interface()); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q: must be json or yaml", format)
	}
}

func (a *app) render(cmd *cobra.Command, v firefly.Value) error {
	return render(cmd.OutOrStdout(), v, a.output)
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func printOK(w io.Writer, format string, args ...any) {
	okColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarn(w io.Writer, format string, args ...any) {
	warnColor.Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printErr(w io.Writer, format string, args ...any) {
	errColor.Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the fireflyctl version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipBootstrap: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "fireflyctl %s\n", Version)
			return err
		},
	}
}
