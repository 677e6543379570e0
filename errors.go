package bikenet

import (
	"fmt"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

// ErrCancelled is returned when a run is aborted through its context
var ErrCancelled = errors.New("run cancelled")

// DataNotFoundError reports missing per-city input records. Runs skip the city and continue.
type DataNotFoundError struct {
	CityID      string
	NetworkType string
	Source      string
}

func (e *DataNotFoundError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("no %s data for city '%s' (%s)", e.NetworkType, e.CityID, e.Source)
	}
	return fmt.Sprintf("no %s data for city '%s'", e.NetworkType, e.CityID)
}

// UnreachableNodesError reports an abstract edge whose endpoints lie in different street graph components
type UnreachableNodesError struct {
	Source osm.NodeID
	Target osm.NodeID
}

func (e *UnreachableNodesError) Error() string {
	return fmt.Sprintf("no street path between nodes %d and %d", e.Source, e.Target)
}

// GeometryConversionError reports a malformed geometry met during overlap or metrics computation
type GeometryConversionError struct {
	Item   string
	Reason string
}

func (e *GeometryConversionError) Error() string {
	return fmt.Sprintf("bad geometry for %s: %s", e.Item, e.Reason)
}

// IsDataNotFound checks whether err (or its cause chain) is a DataNotFoundError
func IsDataNotFound(err error) bool {
	var target *DataNotFoundError
	return errors.As(err, &target)
}

// IsUnreachable checks whether err (or its cause chain) is an UnreachableNodesError
func IsUnreachable(err error) bool {
	var target *UnreachableNodesError
	return errors.As(err, &target)
}

// IsGeometryConversion checks whether err (or its cause chain) is a GeometryConversionError
func IsGeometryConversion(err error) bool {
	var target *GeometryConversionError
	return errors.As(err, &target)
}
