package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fireflyiii/pkg/firefly"
)

func newAccountsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List and create accounts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.client.ListAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("list accounts: %w", err)
			}
			return a.render(cmd, v)
		},
	}

	var (
		params         firefly.CreateAccountParams
		accountType    string
		accountRole    string
		openingBalance string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := params.Type.UnmarshalText([]byte(accountType)); err != nil {
				return err
			}
			if err := params.Role.UnmarshalText([]byte(accountRole)); err != nil {
				return err
			}
			if openingBalance != "" {
				d, err := decimal.NewFromString(openingBalance)
				if err != nil {
					return fmt.Errorf("invalid opening balance %q: %w", openingBalance, err)
				}
				params.OpeningBalance = &d
			}

			v, err := a.client.CreateAccount(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("create account: %w", err)
			}
			printOK(cmd.ErrOrStderr(), "Account %q created", params.Name)
			return a.render(cmd, v)
		},
	}
	f := create.Flags()
	f.StringVar(&params.Name, "name", "", "account name (required)")
	f.StringVar(&accountType, "type", "asset", "asset, expense, revenue, cash or liability")
	f.StringVar(&accountRole, "role", "", "defaultAsset, sharedAsset, savingAsset, ccAsset or cashWalletAsset")
	f.StringVar(&params.CurrencyCode, "currency", "", "currency code")
	f.StringVar(&params.IBAN, "iban", "", "IBAN")
	f.StringVar(&openingBalance, "opening-balance", "", "opening balance")
	f.StringVar(&params.OpeningBalanceDate, "opening-balance-date", "", "opening balance date (YYYY-MM-DD)")
	f.StringVar(&params.Notes, "notes", "", "notes")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(list, create)
	return cmd
}

func newCurrenciesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "currencies",
		Short: "List currencies and change their state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all currencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.client.ListCurrencies(cmd.Context())
			if err != nil {
				return fmt.Errorf("list currencies: %w", err)
			}
			return a.render(cmd, v)
		},
	})

	actions := []struct {
		use   string
		short string
		call  func(c *firefly.Client, ctx context.Context, code string) (firefly.Value, error)
	}{
		{"enable", "Enable a currency", (*firefly.Client).EnableCurrency},
		{"disable", "Disable a currency", (*firefly.Client).DisableCurrency},
		{"default", "Make a currency the default", (*firefly.Client).SetDefaultCurrency},
	}
	for _, act := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   act.use + " CODE",
			Short: act.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				code := strings.ToUpper(args[0])
				v, err := act.call(a.client, cmd.Context(), code)
				if err != nil {
					return fmt.Errorf("%s currency %s: %w", act.use, code, err)
				}
				printOK(cmd.ErrOrStderr(), "Currency %s: %s", code, act.use)
				return a.render(cmd, v)
			},
		})
	}
	return cmd
}

func newTransactionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List and store transactions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.client.ListTransactions(cmd.Context())
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			return a.render(cmd, v)
		},
	})

	var file string
	store := &cobra.Command{
		Use:   "store",
		Short: "Store a transaction group read from a JSON or YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := loadStoreParams(file)
			if err != nil {
				return err
			}
			v, err := a.client.StoreTransaction(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("store transaction: %w", err)
			}
			printOK(cmd.ErrOrStderr(), "Stored %d transaction(s)", len(params.Transactions))
			return a.render(cmd, v)
		},
	}
	store.Flags().StringVarP(&file, "file", "f", "", "JSON or YAML file holding the store request (required)")
	_ = store.MarkFlagRequired("file")

	cmd.AddCommand(store)
	return cmd
}

// loadStoreParams decodes a store request. YAML input goes through JSON once
// more so enum fields are checked the same way for both formats.
func loadStoreParams(path string) (firefly.StoreTransactionParams, error) {
	var params firefly.StoreTransactionParams

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &params); err != nil {
			return params, fmt.Errorf("decode %s: %w", path, err)
		}
		if data, err = json.Marshal(params); err != nil {
			return params, fmt.Errorf("encode %s: %w", path, err)
		}
		params = firefly.StoreTransactionParams{}
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(params.Transactions) == 0 {
		return params, errors.New("store request has no transactions")
	}
	return params, nil
}

func newDataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Bulk data operations",
	}

	var (
		objects string
		yes     bool
	)
	destroy := &cobra.Command{
		Use:   "destroy",
		Short: "Permanently delete a class of objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var params firefly.DestroyParams
			if err := params.Objects.UnmarshalText([]byte(objects)); err != nil {
				return err
			}
			if !yes {
				printWarn(cmd.ErrOrStderr(), "This deletes all %s. Re-run with --yes to confirm.", objects)
				return errors.New("destroy not confirmed")
			}
			v, err := a.client.Destroy(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("destroy %s: %w", objects, err)
			}
			printOK(cmd.ErrOrStderr(), "Destroyed %s", objects)
			return a.render(cmd, v)
		},
	}
	destroy.Flags().StringVar(&objects, "objects", "", "accounts, expense_accounts, revenue_accounts, deposits or transfers (required)")
	destroy.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	_ = destroy.MarkFlagRequired("objects")

	cmd.AddCommand(destroy)
	return cmd
}
