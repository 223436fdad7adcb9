// Package query implements the dimension-aware query resolver (C8):
// translating a logical DatasetQuery into a catalog lookup, so the
// coordinator never needs to know the catalog's method surface directly.
package query

import (
	"context"
	"time"

	"github.com/jcom-dev/weathergrid/internal/catalog"
	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// TimeSpecKind discriminates TimeSpec's closed sum type.
type TimeSpecKind int

const (
	Latest TimeSpecKind = iota
	Forecast
	Observation
	ValidTime
)

// TimeSpec is a closed sum type: exactly one of its fields is meaningful,
// selected by Kind. ReferenceTime is currently unused by the resolution
// rules (spec §4.8 resolves Forecast by hour alone) but is carried so a
// future exact-run lookup has somewhere to live.
type TimeSpec struct {
	Kind          TimeSpecKind
	ReferenceTime *time.Time
	ForecastHour  *int
	Time          time.Time // Observation.time or ValidTime.valid_time
}

// DatasetQuery is the logical request the resolver accepts. Level is
// optional; its zero value means "no level filter."
type DatasetQuery struct {
	Model     string
	Parameter string
	Level     string
	TimeSpec  TimeSpec
}

// catalogReader is the subset of *catalog.Catalog the resolver calls. A
// narrow interface here keeps Resolve testable without a live database.
type catalogReader interface {
	FindByTime(ctx context.Context, model, parameter string, t time.Time) (catalog.Entry, error)
	FindByTimeAndLevel(ctx context.Context, model, parameter, level string, t time.Time) (catalog.Entry, error)
	FindByForecastHour(ctx context.Context, model, parameter string, hour int) (catalog.Entry, error)
	FindByForecastHourAndLevel(ctx context.Context, model, parameter, level string, hour int) (catalog.Entry, error)
	GetLatestRunEarliestForecast(ctx context.Context, model, parameter string) (catalog.Entry, error)
	GetLatestRunEarliestForecastAtLevel(ctx context.Context, model, parameter, level string) (catalog.Entry, error)
}

// Resolve maps q to a catalog entry, following spec §4.8's resolution
// rules. It returns wmserr.NotFound when the catalog has no match, and
// wmserr.MetadataMissing when the matched entry carries no zarr metadata.
func Resolve(ctx context.Context, cat catalogReader, q DatasetQuery) (catalog.Entry, error) {
	hasLevel := q.Level != ""

	var (
		entry catalog.Entry
		err   error
	)

	switch q.TimeSpec.Kind {
	case Observation:
		entry, err = cat.FindByTime(ctx, q.Model, q.Parameter, q.TimeSpec.Time)

	case ValidTime:
		if hasLevel {
			entry, err = cat.FindByTimeAndLevel(ctx, q.Model, q.Parameter, q.Level, q.TimeSpec.Time)
		} else {
			entry, err = cat.FindByTime(ctx, q.Model, q.Parameter, q.TimeSpec.Time)
		}

	case Forecast:
		if q.TimeSpec.ForecastHour != nil {
			if hasLevel {
				entry, err = cat.FindByForecastHourAndLevel(ctx, q.Model, q.Parameter, q.Level, *q.TimeSpec.ForecastHour)
			} else {
				entry, err = cat.FindByForecastHour(ctx, q.Model, q.Parameter, *q.TimeSpec.ForecastHour)
			}
		} else {
			if hasLevel {
				entry, err = cat.GetLatestRunEarliestForecastAtLevel(ctx, q.Model, q.Parameter, q.Level)
			} else {
				entry, err = cat.GetLatestRunEarliestForecast(ctx, q.Model, q.Parameter)
			}
		}

	case Latest:
		fallthrough
	default:
		if hasLevel {
			entry, err = cat.GetLatestRunEarliestForecastAtLevel(ctx, q.Model, q.Parameter, q.Level)
		} else {
			entry, err = cat.GetLatestRunEarliestForecast(ctx, q.Model, q.Parameter)
		}
	}

	if err != nil {
		return catalog.Entry{}, err
	}
	if len(entry.ZarrMetadata) == 0 {
		return catalog.Entry{}, wmserr.New(wmserr.KindMetadataMissing, "catalog entry has no zarr metadata")
	}
	return entry, nil
}
