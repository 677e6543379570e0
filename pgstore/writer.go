package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/LdDl/bikenet"
)

var insertMetrics = buildInsertMetrics()

func buildInsertMetrics() string {
	columns := append([]string{"task_id", "city_id", "network_type", "connectivity", "prune_index", "quantile", "is_base"}, bikenet.MetricsColumns()...)
	return fmt.Sprintf(
		"INSERT INTO f_simulation_city_metrics (%s) VALUES (:%s)",
		strings.Join(columns, ", "),
		strings.Join(columns, ", :"),
	)
}

const insertSegment = `
	INSERT INTO f_simulation_edges (task_id, city_id, connectivity, prune_index, quantile, geom)
	VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_GeomFromWKB($6), 4326))`

// WriteStep implements bikenet.ResultWriter. Metrics row and segments of a step share one transaction
func (store *Store) WriteStep(ctx context.Context, step *bikenet.StepResult) error {
	return store.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertMetrics, step.Metrics); err != nil {
			return errors.Wrap(err, "Can't insert metrics")
		}
		for _, seg := range step.Segments {
			geom, err := seg.Geometry.Orb()
			if err != nil {
				return errors.Wrap(err, "Can't convert segment geometry")
			}
			_, err = tx.ExecContext(ctx, insertSegment, seg.TaskID, seg.CityID, seg.Connectivity, seg.PruneIndex, seg.Quantile, wkb.Value(geom))
			if err != nil {
				return errors.Wrap(err, "Can't insert segment")
			}
		}
		return nil
	})
}

// WriteBaseline implements bikenet.ResultWriter
func (store *Store) WriteBaseline(ctx context.Context, rows []bikenet.MetricsRow) error {
	if len(rows) == 0 {
		return nil
	}
	return store.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			if _, err := tx.NamedExecContext(ctx, insertMetrics, row); err != nil {
				return errors.Wrap(err, "Can't insert baseline metrics")
			}
		}
		return nil
	})
}

// FinishCity implements bikenet.ResultWriter. Rows are committed per step so nothing is left
func (store *Store) FinishCity(ctx context.Context, taskID, cityID string) error {
	store.logger.Info("city results stored", zap.String("task", taskID), zap.String("city", cityID))
	return nil
}

func (store *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := store.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			store.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "Can't commit transaction")
}
