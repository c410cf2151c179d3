package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
	"github.com/GoAITrader/tradegate/internal/repository"
	"github.com/GoAITrader/tradegate/internal/service"
)

// openSwitcher builds a Switcher over the store directory from the --dir
// flag. The CLI talks to the store directly; no gateway needs to be running.
func openSwitcher(cmd *cli.Command) (*service.Switcher, error) {
	store, err := repository.NewFileStore(cmd.String("dir"))
	if err != nil {
		return nil, fmt.Errorf("failed to open config store: %w", err)
	}
	return service.NewSwitcher(store, nil), nil
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	svc, err := openSwitcher(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKET\tKIND\tGROUP\tACTIVE\tDIGEST")
	for _, m := range svc.List() {
		active := ""
		if m.IsActive {
			active = "✅"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Kind, m.Group, active, m.Digest)
	}
	return w.Flush()
}

func activeAction(ctx context.Context, cmd *cli.Command) error {
	svc, err := openSwitcher(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tMARKET\tKIND\tACTIVATED")
	for _, a := range svc.Active() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Group, a.Market, a.Kind, a.ActivatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func switchAction(ctx context.Context, cmd *cli.Command) error {
	market := cmd.Args().First()
	if market == "" {
		return cli.Exit("usage: marketctl switch <market>", 2)
	}
	svc, err := openSwitcher(cmd)
	if err != nil {
		return err
	}

	result, err := svc.SwitchTo(market, model.ActivateRequest{
		SkipValidation: cmd.Bool("no-validate"),
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Type == apperrors.ErrValidationFailed {
			fmt.Printf("❌ Switch to %q rejected:\n", market)
			if vr, ok := appErr.Details.(*model.ValidationResult); ok {
				printFindings(vr)
			}
			return cli.Exit(appErr.Suggestion, 1)
		}
		return err
	}

	if result.AlreadyActive {
		fmt.Printf("✅ %s is already active in group %s\n", result.Market, result.Group)
		return nil
	}
	if result.Previous != "" {
		fmt.Printf("✅ Switched %s: %s -> %s\n", result.Group, result.Previous, result.Market)
	} else {
		fmt.Printf("✅ Activated %s in group %s\n", result.Market, result.Group)
	}
	if result.Validation != nil && result.Validation.WarningCount() > 0 {
		printFindings(result.Validation)
	}
	return nil
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	market := cmd.Args().First()
	if market == "" {
		return cli.Exit("usage: marketctl validate <market>", 2)
	}
	svc, err := openSwitcher(cmd)
	if err != nil {
		return err
	}

	result, err := svc.Validate(market)
	if err != nil {
		return err
	}
	printFindings(result)
	if !result.Valid {
		return cli.Exit(fmt.Sprintf("%d validation error(s)", result.ErrorCount()), 1)
	}
	fmt.Printf("✅ %s is valid (%d warning(s))\n", market, result.WarningCount())
	return nil
}

func summaryAction(ctx context.Context, cmd *cli.Command) error {
	market := cmd.Args().First()
	if market == "" {
		return cli.Exit("usage: marketctl summary <market>", 2)
	}
	svc, err := openSwitcher(cmd)
	if err != nil {
		return err
	}

	s, err := svc.Summary(market)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Market:\t%s (%s)\n", s.ID, s.Kind)
	fmt.Fprintf(w, "Group:\t%s\n", s.Group)
	fmt.Fprintf(w, "Active:\t%t\n", s.IsActive)
	fmt.Fprintf(w, "Digest:\t%s\n", s.Digest)
	fmt.Fprintf(w, "Strategy:\t%s\n", s.Strategy)
	fmt.Fprintf(w, "Models:\t%d enabled of %d\n", s.EnabledModels, s.TotalModels)
	fmt.Fprintf(w, "Data sources:\t%v\n", s.DataSources)
	fmt.Fprintf(w, "Findings:\t%d error(s), %d warning(s)\n", s.Errors, s.Warnings)
	if err := w.Flush(); err != nil {
		return err
	}
	printKeys(s.Keys)
	return nil
}

func checkKeysAction(ctx context.Context, cmd *cli.Command) error {
	market := cmd.Args().First()
	if market == "" {
		return cli.Exit("usage: marketctl check-keys <market>", 2)
	}
	svc, err := openSwitcher(cmd)
	if err != nil {
		return err
	}

	keys, err := svc.CheckKeys(market)
	if err != nil {
		return err
	}
	printKeys(keys)
	return nil
}

func printFindings(result *model.ValidationResult) {
	for _, f := range result.Findings {
		marker := "⚠️"
		if f.Severity == model.SeverityError {
			marker = "❌"
		}
		fmt.Printf("  %s [%s] %s: %s\n", marker, f.Rule, f.Field, f.Message)
	}
}

func printKeys(keys []model.KeyStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tCONFIGURED\tSOURCE")
	for _, k := range keys {
		configured := "❌"
		if k.Configured {
			configured = "✅"
		}
		source := "document"
		if k.FromEnv {
			source = "env"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", k.Provider, configured, source)
	}
	w.Flush()
}

func main() {
	logger.Init(os.Getenv("TRADEGATE_LOG_LEVEL"), "text")

	cmd := &cli.Command{
		Name:  "marketctl",
		Usage: "Inspect and switch market configurations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Path to the market config store directory",
				Value:   "./configs/markets",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every market and its activation state",
				Action: listAction,
			},
			{
				Name:   "active",
				Usage:  "Show the active market of every group",
				Action: activeAction,
			},
			{
				Name:      "switch",
				Usage:     "Validate and activate a market within its group",
				ArgsUsage: "<market>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-validate",
						Usage: "Activate even if validation fails",
					},
				},
				Action: switchAction,
			},
			{
				Name:      "validate",
				Usage:     "Run the full validation pipeline against a market",
				ArgsUsage: "<market>",
				Action:    validateAction,
			},
			{
				Name:      "summary",
				Usage:     "Print the operator digest of a market",
				ArgsUsage: "<market>",
				Action:    summaryAction,
			},
			{
				Name:      "check-keys",
				Usage:     "Report credential status per provider, env overrides included",
				ArgsUsage: "<market>",
				Action:    checkKeysAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
