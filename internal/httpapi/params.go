package httpapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jcom-dev/weathergrid/internal/query"
	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// parseTimeSpec decodes the tile and EDR endpoints' shared time
// parameters into a query.TimeSpec:
//
//	(no params)                 -> Latest
//	forecast_hour=<int>         -> Forecast at that lead hour
//	forecast_hour=latest        -> Forecast, earliest forecast of latest run
//	time=<RFC3339>              -> ValidTime
//	observation_time=<RFC3339>  -> Observation
func parseTimeSpec(q url.Values) (query.TimeSpec, error) {
	if fh := q.Get("forecast_hour"); fh != "" {
		if fh == "latest" {
			return query.TimeSpec{Kind: query.Forecast}, nil
		}
		hour, err := strconv.Atoi(fh)
		if err != nil {
			return query.TimeSpec{}, wmserr.New(wmserr.KindBadRequest, "forecast_hour must be an integer or \"latest\"")
		}
		return query.TimeSpec{Kind: query.Forecast, ForecastHour: &hour}, nil
	}

	if ot := q.Get("observation_time"); ot != "" {
		t, err := time.Parse(time.RFC3339, ot)
		if err != nil {
			return query.TimeSpec{}, wmserr.New(wmserr.KindBadRequest, "observation_time must be RFC3339")
		}
		return query.TimeSpec{Kind: query.Observation, Time: t}, nil
	}

	if vt := q.Get("time"); vt != "" {
		t, err := time.Parse(time.RFC3339, vt)
		if err != nil {
			return query.TimeSpec{}, wmserr.New(wmserr.KindBadRequest, "time must be RFC3339")
		}
		return query.TimeSpec{Kind: query.ValidTime, Time: t}, nil
	}

	return query.TimeSpec{Kind: query.Latest}, nil
}

// parseCoords decodes an EDR "coords" parameter in WKT POINT form, e.g.
// "POINT(-97.5 35.2)", per the OGC EDR API's position query convention.
func parseCoords(raw string) (lon, lat float64, err error) {
	raw = strings.TrimSpace(raw)
	upper := strings.ToUpper(raw)
	if !strings.HasPrefix(upper, "POINT(") || !strings.HasSuffix(raw, ")") {
		return 0, 0, wmserr.New(wmserr.KindBadRequest, "coords must be a WKT POINT, e.g. POINT(lon lat)")
	}
	inner := raw[len("POINT(") : len(raw)-1]
	parts := strings.Fields(inner)
	if len(parts) != 2 {
		return 0, 0, wmserr.New(wmserr.KindBadRequest, "coords POINT must have exactly two ordinates")
	}
	lon, errLon := strconv.ParseFloat(parts[0], 64)
	lat, errLat := strconv.ParseFloat(parts[1], 64)
	if errLon != nil || errLat != nil {
		return 0, 0, wmserr.New(wmserr.KindBadRequest, "coords ordinates must be numeric")
	}
	return lon, lat, nil
}
