package pgstore

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS f_street_nodes (
		city_id TEXT NOT NULL,
		network_type TEXT NOT NULL,
		node_id BIGINT NOT NULL,
		geom geometry(Point, 4326) NOT NULL,
		PRIMARY KEY (city_id, network_type, node_id)
	)`,
	`CREATE TABLE IF NOT EXISTS f_street_edges (
		city_id TEXT NOT NULL,
		network_type TEXT NOT NULL,
		edge_id BIGINT NOT NULL,
		way_id BIGINT NOT NULL DEFAULT 0,
		source BIGINT NOT NULL,
		target BIGINT NOT NULL,
		length DOUBLE PRECISION NOT NULL DEFAULT 0,
		geom geometry(LineString, 4326),
		PRIMARY KEY (city_id, network_type, edge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS f_poi (
		id BIGSERIAL PRIMARY KEY,
		city_id TEXT NOT NULL,
		category TEXT NOT NULL,
		geom geometry(Point, 4326) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS f_simulation_city_metrics (
		id BIGSERIAL PRIMARY KEY,
		task_id TEXT NOT NULL,
		city_id TEXT NOT NULL,
		network_type TEXT NOT NULL,
		connectivity TEXT NOT NULL,
		prune_index INTEGER NOT NULL,
		quantile DOUBLE PRECISION NOT NULL,
		is_base BOOLEAN NOT NULL,
		length DOUBLE PRECISION,
		length_lcc DOUBLE PRECISION,
		coverage DOUBLE PRECISION,
		directness DOUBLE PRECISION,
		directness_lcc DOUBLE PRECISION,
		poi_coverage DOUBLE PRECISION,
		components INTEGER,
		efficiency_global DOUBLE PRECISION,
		efficiency_local DOUBLE PRECISION,
		efficiency_global_routed DOUBLE PRECISION,
		efficiency_local_routed DOUBLE PRECISION,
		directness_lcc_linkwise DOUBLE PRECISION,
		directness_all_linkwise DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS f_simulation_edges (
		id BIGSERIAL PRIMARY KEY,
		task_id TEXT NOT NULL,
		city_id TEXT NOT NULL,
		connectivity TEXT NOT NULL,
		prune_index INTEGER NOT NULL,
		quantile DOUBLE PRECISION NOT NULL,
		geom geometry(Geometry, 4326)
	)`,
}
