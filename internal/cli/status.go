package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/media"
	"github.com/soyeahso/gewebridge/internal/store"
	"github.com/soyeahso/gewebridge/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and recent deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("gewebridge %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Gateway: base=%s app=%s token=%s\n",
				orNone(cfg.Gewe.BaseURL), orNone(cfg.Gewe.AppID), setOrNot(cfg.Gewe.Token))
			fmt.Printf("Server:  bind=%s port=%d path=%s\n", cfg.Server.Bind, cfg.ListenPort(), cfg.CallbackPath())
			fmt.Printf("Media:   temp=%s\n", cfg.Media.TempDir)

			if missing := media.ToolsFromConfig(cfg.Media).Missing(); len(missing) > 0 {
				fmt.Printf("Tools:   missing %s\n", strings.Join(missing, ", "))
			} else {
				fmt.Println("Tools:   ok")
			}

			responder := "echo"
			if cfg.Responder.Command != "" {
				responder = cfg.Responder.Command
			}
			fmt.Printf("Reply:   %s\n", responder)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			if !cfg.Delivery.JournalEnabled() {
				fmt.Println("\nJournal: disabled")
				return nil
			}
			if _, err := os.Stat(paths.Journal); err != nil {
				fmt.Println("\nJournal: (no deliveries yet)")
				return nil
			}
			return printJournal(cmd.Context(), recent)
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent deliveries to show")
	return cmd
}

func printJournal(ctx context.Context, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := store.Open(paths.Journal, log)
	if err != nil {
		return err
	}
	defer db.Close()
	journal := store.NewJournal(db)

	counts, err := journal.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nJournal: sent=%d failed=%d\n", counts["sent"], counts["failed"])

	rows, err := journal.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, d := range rows {
		line := fmt.Sprintf("  %s  %-9s %-6s %-24s", d.CreatedAt.Local().Format("2006-01-02 15:04:05"), d.Kind, d.Outcome, d.Receiver)
		if d.Segments > 0 {
			line += fmt.Sprintf(" segments=%d", d.Segments)
		}
		if d.Error != "" {
			line += " (" + d.Failure + ": " + d.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func setOrNot(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "set"
}
