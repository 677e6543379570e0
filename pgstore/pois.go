package pgstore

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/LdDl/bikenet"
)

const queryPOIs = `
	SELECT category, ST_AsBinary(geom)
	FROM f_poi
	WHERE city_id = $1
	ORDER BY id`

// LoadPOIs implements bikenet.POISource. Raw points of every category are snapped to graph nodes
func (store *Store) LoadPOIs(ctx context.Context, taskID, cityID string, graph *bikenet.StreetGraph) (bikenet.POISet, error) {
	rows, err := store.db.QueryContext(ctx, queryPOIs, cityID)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query POIs")
	}
	defer rows.Close()

	categories := map[string][]orb.Point{}
	for rows.Next() {
		var category string
		var pt orb.Point
		if err := rows.Scan(&category, wkb.Scanner(&pt)); err != nil {
			return nil, errors.Wrap(err, "Can't scan POI")
		}
		categories[category] = append(categories[category], pt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't iterate POIs")
	}
	if len(categories) == 0 {
		return nil, &bikenet.DataNotFoundError{CityID: cityID, NetworkType: "poi", Source: "postgres"}
	}

	snapper := bikenet.NewSnapper(graph, store.snapThreshold)
	set, results := snapper.SnapCategories(categories)
	for _, res := range results {
		if res.Err != nil {
			store.logger.Warn("POI category skipped", zap.String("task", taskID), zap.String("city", cityID), zap.String("category", res.Category), zap.Error(res.Err))
			continue
		}
		store.logger.Debug("POI category snapped", zap.String("city", cityID), zap.String("category", res.Category), zap.Int("pois", len(res.POIs)), zap.Int("dropped", res.Dropped))
	}
	return set, nil
}
