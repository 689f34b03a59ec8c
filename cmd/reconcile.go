package main

import (
	"encoding/json"
	"fmt"
	"time"

	"verimeter/internal/jobs/background"
	"verimeter/internal/services"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var tenantID string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare wallet balances with their ledgers and print a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")

			if tenantID != "" {
				result, err := a.wallets.Reconcile(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				if err := out.Encode(result); err != nil {
					return err
				}
				if !result.Consistent {
					return fmt.Errorf("wallet %s does not match its ledger", tenantID)
				}
				return nil
			}

			if concurrency <= 0 {
				concurrency = cfg.ReconcileConcurrency
			}
			report, err := background.NewReconciler(a.wallets, concurrency, logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := out.Encode(report); err != nil {
				return err
			}
			if len(report.Mismatched) > 0 || len(report.Failed) > 0 {
				return fmt.Errorf("%d mismatched, %d failed", len(report.Mismatched), len(report.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "reconcile a single tenant")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel wallet checks (default RECONCILE_CONCURRENCY)")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export one day of audit entries to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := time.Now().UTC().AddDate(0, 0, -1)
			if day != "" {
				parsed, err := time.Parse("2006-01-02", day)
				if err != nil {
					return fmt.Errorf("invalid --day: %w", err)
				}
				target = parsed
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.archive == nil {
				return fmt.Errorf("object storage is not configured (MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY)")
			}
			n, err := services.NewAuditArchiveService(a.auditRepo, a.archive, logger).ArchiveDay(cmd.Context(), target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d entries for %s\n", n, target.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "UTC day to export, YYYY-MM-DD (default yesterday)")
	return cmd
}
