package query

import (
	"context"
	"testing"
	"time"

	"github.com/jcom-dev/weathergrid/internal/catalog"
)

type calls struct {
	method string
	level  string
}

type fakeCatalog struct {
	got    calls
	entry  catalog.Entry
	noRows bool
}

func (f *fakeCatalog) result() (catalog.Entry, error) {
	if f.noRows {
		return catalog.Entry{}, errNotFound
	}
	return f.entry, nil
}

func (f *fakeCatalog) FindByTime(ctx context.Context, model, parameter string, t time.Time) (catalog.Entry, error) {
	f.got = calls{method: "FindByTime"}
	return f.result()
}
func (f *fakeCatalog) FindByTimeAndLevel(ctx context.Context, model, parameter, level string, t time.Time) (catalog.Entry, error) {
	f.got = calls{method: "FindByTimeAndLevel", level: level}
	return f.result()
}
func (f *fakeCatalog) FindByForecastHour(ctx context.Context, model, parameter string, hour int) (catalog.Entry, error) {
	f.got = calls{method: "FindByForecastHour"}
	return f.result()
}
func (f *fakeCatalog) FindByForecastHourAndLevel(ctx context.Context, model, parameter, level string, hour int) (catalog.Entry, error) {
	f.got = calls{method: "FindByForecastHourAndLevel", level: level}
	return f.result()
}
func (f *fakeCatalog) GetLatestRunEarliestForecast(ctx context.Context, model, parameter string) (catalog.Entry, error) {
	f.got = calls{method: "GetLatestRunEarliestForecast"}
	return f.result()
}
func (f *fakeCatalog) GetLatestRunEarliestForecastAtLevel(ctx context.Context, model, parameter, level string) (catalog.Entry, error) {
	f.got = calls{method: "GetLatestRunEarliestForecastAtLevel", level: level}
	return f.result()
}

var errNotFound = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "no rows" }

func hourPtr(h int) *int { return &h }

func TestResolveDispatchesPerSpecTable(t *testing.T) {
	withMeta := catalog.Entry{ZarrMetadata: []byte(`{}`)}

	cases := []struct {
		name   string
		q      DatasetQuery
		wantFn string
	}{
		{"latest no level", DatasetQuery{TimeSpec: TimeSpec{Kind: Latest}}, "GetLatestRunEarliestForecast"},
		{"latest with level", DatasetQuery{Level: "2m", TimeSpec: TimeSpec{Kind: Latest}}, "GetLatestRunEarliestForecastAtLevel"},
		{"forecast with hour no level", DatasetQuery{TimeSpec: TimeSpec{Kind: Forecast, ForecastHour: hourPtr(6)}}, "FindByForecastHour"},
		{"forecast with hour and level", DatasetQuery{Level: "2m", TimeSpec: TimeSpec{Kind: Forecast, ForecastHour: hourPtr(6)}}, "FindByForecastHourAndLevel"},
		{"forecast no hour no level", DatasetQuery{TimeSpec: TimeSpec{Kind: Forecast}}, "GetLatestRunEarliestForecast"},
		{"forecast no hour with level", DatasetQuery{Level: "2m", TimeSpec: TimeSpec{Kind: Forecast}}, "GetLatestRunEarliestForecastAtLevel"},
		{"observation", DatasetQuery{TimeSpec: TimeSpec{Kind: Observation, Time: time.Now()}}, "FindByTime"},
		{"valid time no level", DatasetQuery{TimeSpec: TimeSpec{Kind: ValidTime, Time: time.Now()}}, "FindByTime"},
		{"valid time with level", DatasetQuery{Level: "2m", TimeSpec: TimeSpec{Kind: ValidTime, Time: time.Now()}}, "FindByTimeAndLevel"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeCatalog{entry: withMeta}
			_, err := Resolve(context.Background(), fc, tc.q)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if fc.got.method != tc.wantFn {
				t.Errorf("got method %s, want %s", fc.got.method, tc.wantFn)
			}
		})
	}
}

func TestResolvePropagatesNotFound(t *testing.T) {
	fc := &fakeCatalog{noRows: true}
	_, err := Resolve(context.Background(), fc, DatasetQuery{TimeSpec: TimeSpec{Kind: Latest}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveReturnsMetadataMissingWhenEntryHasNoBlob(t *testing.T) {
	fc := &fakeCatalog{entry: catalog.Entry{}}
	_, err := Resolve(context.Background(), fc, DatasetQuery{TimeSpec: TimeSpec{Kind: Latest}})
	if err == nil {
		t.Fatal("expected MetadataMissing error")
	}
}
