package pgstore_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/LdDl/bikenet"
	"github.com/LdDl/bikenet/pgstore"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type StoreSuite struct {
	suite.Suite
	db     *sqlx.DB
	store  *pgstore.Store
	ctx    context.Context
	cityID string
}

func TestStoreSuite(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST is not set")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5432"),
		getEnv("TEST_DB_USER", "postgres"),
		getEnv("TEST_DB_PASSWORD", "postgres"),
		getEnv("TEST_DB_NAME", "bikenet_test"),
		getEnv("TEST_DB_SSLMODE", "disable"),
	)
	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
	s.ctx = context.Background()
	s.store = pgstore.NewWithDB(db, pgstore.WithLogger(zap.NewNop()), pgstore.WithSnapThreshold(100))
	s.Require().NoError(s.store.Migrate(s.ctx))
	s.cityID = "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	nodes := []struct {
		id       int64
		lon, lat float64
	}{
		{1, 13.4000, 52.5000},
		{2, 13.4010, 52.5000},
		{3, 13.4010, 52.5010},
	}
	for _, n := range nodes {
		_, err := db.Exec(
			`INSERT INTO f_street_nodes (city_id, network_type, node_id, geom) VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326))`,
			s.cityID, bikenet.NETWORK_CARALL, n.id, n.lon, n.lat,
		)
		s.Require().NoError(err)
	}
	edges := [][3]int64{{10, 1, 2}, {11, 2, 3}}
	for _, e := range edges {
		_, err := db.Exec(
			`INSERT INTO f_street_edges (city_id, network_type, edge_id, source, target, geom)
			SELECT $1, $2, $3, $4, $5, ST_MakeLine(a.geom, b.geom)
			FROM f_street_nodes a, f_street_nodes b
			WHERE a.city_id = $1 AND b.city_id = $1 AND a.network_type = $2 AND b.network_type = $2 AND a.node_id = $4 AND b.node_id = $5`,
			s.cityID, bikenet.NETWORK_CARALL, e[0], e[1], e[2],
		)
		s.Require().NoError(err)
	}
	_, err = db.Exec(
		`INSERT INTO f_poi (city_id, category, geom) VALUES ($1, 'school', ST_SetSRID(ST_MakePoint(13.40001, 52.50001), 4326)), ($1, 'school', ST_SetSRID(ST_MakePoint(13.40101, 52.50101), 4326))`,
		s.cityID,
	)
	s.Require().NoError(err)
}

func (s *StoreSuite) TearDownSuite() {
	if s.db == nil {
		return
	}
	for _, table := range []string{"f_street_nodes", "f_street_edges", "f_poi", "f_simulation_city_metrics", "f_simulation_edges"} {
		_, _ = s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE city_id = $1", table), s.cityID)
	}
	s.db.Close()
}

func (s *StoreSuite) TestLoadRecords() {
	nodes, edges, err := s.store.LoadRecords(s.ctx, s.cityID, bikenet.NETWORK_CARALL)
	s.Require().NoError(err)
	s.Len(nodes, 3)
	s.Len(edges, 2)
	s.Len(edges[0].Geom, 2)
}

func (s *StoreSuite) TestLoadRecordsMissing() {
	_, _, err := s.store.LoadRecords(s.ctx, s.cityID, bikenet.NETWORK_BIKETRACK)
	s.Require().Error(err)
	s.True(bikenet.IsDataNotFound(err))
}

func (s *StoreSuite) TestLoadPOIs() {
	graph, err := bikenet.NewGraphLoader(s.store, nil).Load(s.ctx, s.cityID, bikenet.NETWORK_CARALL)
	s.Require().NoError(err)
	pois, err := s.store.LoadPOIs(s.ctx, "task", s.cityID, graph)
	s.Require().NoError(err)
	s.Len(pois, 2)
	s.True(pois.Contains(1))
	s.True(pois.Contains(3))
}

func (s *StoreSuite) TestWriteStep() {
	step := &bikenet.StepResult{
		TaskID:       "task",
		CityID:       s.cityID,
		Connectivity: bikenet.CONNECTIVITY_GT,
		PruneIndex:   1,
		Quantile:     0.5,
		Metrics: bikenet.MetricsRow{
			TaskID:        "task",
			CityID:        s.cityID,
			NetworkType:   bikenet.NETWORK_CARALL,
			Connectivity:  bikenet.CONNECTIVITY_GT,
			PruneIndex:    1,
			Quantile:      0.5,
			MetricsRecord: bikenet.MetricsRecord{Length: 120, Components: 1},
		},
		Segments: []bikenet.SegmentRow{{
			TaskID:       "task",
			CityID:       s.cityID,
			Connectivity: bikenet.CONNECTIVITY_GT,
			PruneIndex:   1,
			Quantile:     0.5,
			Geometry:     bikenet.LineGeometry(orb.LineString{{13.4, 52.5}, {13.401, 52.5}}),
		}},
	}
	s.Require().NoError(s.store.WriteStep(s.ctx, step))
	s.Require().NoError(s.store.FinishCity(s.ctx, "task", s.cityID))

	var metrics int
	s.Require().NoError(s.db.Get(&metrics, `SELECT COUNT(*) FROM f_simulation_city_metrics WHERE city_id = $1`, s.cityID))
	s.Equal(1, metrics)
	var srid int
	s.Require().NoError(s.db.Get(&srid, `SELECT ST_SRID(geom) FROM f_simulation_edges WHERE city_id = $1 LIMIT 1`, s.cityID))
	s.Equal(4326, srid)
}
