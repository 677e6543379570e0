package pgstore

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"

	"github.com/LdDl/bikenet"
)

const (
	queryNodes = `
		SELECT node_id, ST_AsBinary(geom)
		FROM f_street_nodes
		WHERE city_id = $1 AND network_type = $2
		ORDER BY node_id`
	queryEdges = `
		SELECT edge_id, way_id, source, target, length, ST_AsBinary(geom)
		FROM f_street_edges
		WHERE city_id = $1 AND network_type = $2
		ORDER BY edge_id`
)

// LoadRecords implements bikenet.RecordSource
func (store *Store) LoadRecords(ctx context.Context, cityID, networkType string) ([]bikenet.NodeRecord, []bikenet.EdgeRecord, error) {
	nodes, err := store.loadNodes(ctx, cityID, networkType)
	if err != nil {
		return nil, nil, err
	}
	edges, err := store.loadEdges(ctx, cityID, networkType)
	if err != nil {
		return nil, nil, err
	}
	if len(nodes) == 0 && len(edges) == 0 {
		return nil, nil, &bikenet.DataNotFoundError{CityID: cityID, NetworkType: networkType, Source: "postgres"}
	}
	return nodes, edges, nil
}

func (store *Store) loadNodes(ctx context.Context, cityID, networkType string) ([]bikenet.NodeRecord, error) {
	rows, err := store.db.QueryContext(ctx, queryNodes, cityID, networkType)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query nodes")
	}
	defer rows.Close()

	nodes := []bikenet.NodeRecord{}
	for rows.Next() {
		var id int64
		var pt orb.Point
		if err := rows.Scan(&id, wkb.Scanner(&pt)); err != nil {
			return nil, errors.Wrap(err, "Can't scan node")
		}
		nodes = append(nodes, bikenet.NodeRecord{ID: osm.NodeID(id), Point: pt})
	}
	return nodes, errors.Wrap(rows.Err(), "Can't iterate nodes")
}

func (store *Store) loadEdges(ctx context.Context, cityID, networkType string) ([]bikenet.EdgeRecord, error) {
	rows, err := store.db.QueryContext(ctx, queryEdges, cityID, networkType)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query edges")
	}
	defer rows.Close()

	edges := []bikenet.EdgeRecord{}
	for rows.Next() {
		var id, wayID, source, target int64
		var length float64
		var line orb.LineString
		scanner := wkb.Scanner(&line)
		if err := rows.Scan(&id, &wayID, &source, &target, &length, scanner); err != nil {
			return nil, errors.Wrap(err, "Can't scan edge")
		}
		edge := bikenet.EdgeRecord{
			ID:     bikenet.EdgeID(id),
			WayID:  osm.WayID(wayID),
			Source: osm.NodeID(source),
			Target: osm.NodeID(target),
			Length: length,
		}
		if scanner.Valid {
			edge.Geom = line
		}
		edges = append(edges, edge)
	}
	return edges, errors.Wrap(rows.Err(), "Can't iterate edges")
}
