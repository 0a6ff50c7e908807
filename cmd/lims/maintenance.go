package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/mathew-h/experiment-tracking-sub000/internal/app"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
)

var (
	apply bool

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, r *runtime, conn database.DB, _ *app.Services) error {
				return r.migrations().Migrate(conn)
			})
		},
	}

	backfillCmd = &cobra.Command{
		Use:   "backfill-buckets",
		Short: "Stamp time buckets on legacy result rows and re-select primaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, r *runtime, conn database.DB, services *app.Services) error {
				ctxTx, tx, err := conn.GetTx(ctx, &sql.TxOptions{})
				if err != nil {
					return err
				}
				defer tx.Rollback(ctxTx)

				report, err := services.Reconciler.Backfill(ctxTx, apply)
				if err != nil {
					return err
				}
				if apply {
					if err := tx.Commit(ctxTx); err != nil {
						return err
					}
				}
				r.logger.WithContext(ctx).WithFields(map[string]any{"rows": report.Rows, "groups": len(report.Groups), "applied": apply}).Info("Bucket backfill finished")
				return printJSON(report)
			})
		},
	}

	relinkCmd = &cobra.Command{
		Use:   "relink",
		Short: "Recompute base ids and parent links for every experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, r *runtime, _ database.DB, services *app.Services) error {
				changes, err := services.Experiments.RelinkAll(ctx, apply)
				if err != nil {
					return err
				}
				r.logger.WithContext(ctx).WithFields(map[string]any{"changes": len(changes), "applied": apply}).Info("Relink finished")
				return printJSON(changes)
			})
		},
	}

	recomputeCmd = &cobra.Command{
		Use:   "recompute-cumulative",
		Short: "Rewrite cumulative times for every lineage family",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, r *runtime, _ database.DB, services *app.Services) error {
				report, err := services.Experiments.RecomputeAllCumulative(ctx)
				if err != nil {
					return err
				}
				r.logger.WithContext(ctx).WithFields(map[string]any{"families": report.Families, "rows": report.Rows, "cycles": len(report.Cycles)}).Info("Cumulative recompute finished")
				return printJSON(report)
			})
		},
	}
)

func init() {
	backfillCmd.Flags().BoolVar(&apply, "apply", false, "write changes instead of reporting them")
	relinkCmd.Flags().BoolVar(&apply, "apply", false, "write changes instead of reporting them")
}

func withServices(cmd *cobra.Command, fn func(ctx context.Context, r *runtime, conn database.DB, services *app.Services) error) error {
	r, err := newRuntime()
	if err != nil {
		return err
	}
	defer r.zap.Sync() //nolint:errcheck

	ctx := cmd.Context()
	conn, services, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, r, conn, services)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
