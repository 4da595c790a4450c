package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

const (
	influxMeasurement = "measurements"

	fieldTemperature = "temperature_2m"
	fieldHumidity    = "relative_humidity_2m"
	fieldWindSpeed   = "wind_speed_10m"
)

// InfluxStore implements weather.Store on an InfluxDB v2 bucket.
// Source, lat and lon are tags and the point time is the reading's timestamp, so
// InfluxDB itself overwrites the fields of a repeated identity key.
type InfluxStore struct {
	client   influxdb2.Client
	org      string
	bucket   string
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
}

// NewInfluxStore creates a new InfluxStore.
func NewInfluxStore(url, token, org, bucket string) *InfluxStore {
	client := influxdb2.NewClient(url, token)
	return &InfluxStore{
		client:   client,
		org:      org,
		bucket:   bucket,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
	}
}

func (s *InfluxStore) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: ping influxdb: %v", weather.ErrStorageUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: influxdb is not ready", weather.ErrStorageUnavailable)
	}
	return nil
}

// EnsureIndexes makes sure the bucket exists. Time is InfluxDB's native index.
func (s *InfluxStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.client.BucketsAPI().FindBucketByName(ctx, s.bucket); err == nil {
		return nil
	}

	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, s.org)
	if err != nil {
		return fmt.Errorf("%w: find organization %q: %v", weather.ErrStorageUnavailable, s.org, err)
	}
	if org == nil {
		return fmt.Errorf("%w: organization %q not found", weather.ErrStorageUnavailable, s.org)
	}

	if _, err := s.client.BucketsAPI().CreateBucketWithName(ctx, org, s.bucket); err != nil {
		return fmt.Errorf("%w: create bucket %q: %v", weather.ErrStorageUnavailable, s.bucket, err)
	}
	return nil
}

func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}

func (s *InfluxStore) Upsert(ctx context.Context, m weather.Measurement) error {
	if err := s.writeAPI.WritePoint(ctx, measurementPoint(m)); err != nil {
		return fmt.Errorf("%w: write point: %v", weather.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *InfluxStore) Latest(ctx context.Context) (weather.Measurement, bool, error) {
	items, err := s.query(ctx, latestFlux(s.bucket))
	if err != nil {
		return weather.Measurement{}, false, err
	}
	if len(items) == 0 {
		return weather.Measurement{}, false, nil
	}
	return items[0], true, nil
}

func (s *InfluxStore) WindowSince(ctx context.Context, since time.Time) ([]weather.Measurement, error) {
	return s.query(ctx, windowFlux(s.bucket, since))
}

func (s *InfluxStore) query(ctx context.Context, flux string) ([]weather.Measurement, error) {
	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: query influxdb: %v", weather.ErrStorageUnavailable, err)
	}
	defer result.Close()

	var items []weather.Measurement
	for result.Next() {
		m, err := measurementFromRecord(result.Record())
		if err != nil {
			return nil, fmt.Errorf("%w: decode record: %v", weather.ErrStorageUnavailable, err)
		}
		items = append(items, m)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("%w: query iteration: %v", weather.ErrStorageUnavailable, result.Err())
	}
	return items, nil
}

func measurementPoint(m weather.Measurement) *write.Point {
	return influxdb2.NewPoint(
		influxMeasurement,
		map[string]string{
			"source": m.Source,
			"lat":    strconv.FormatFloat(m.Lat, 'f', -1, 64),
			"lon":    strconv.FormatFloat(m.Lon, 'f', -1, 64),
		},
		map[string]interface{}{
			fieldTemperature: m.Temperature2m,
			fieldHumidity:    m.RelativeHumidity2m,
			fieldWindSpeed:   m.WindSpeed10m,
		},
		m.Timestamp.UTC(),
	)
}

// pivoted rows carry one column per field, merged across series and sorted by time
const pivotFlux = `
	|> filter(fn: (r) => r["_measurement"] == "` + influxMeasurement + `")
	|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
	|> group()`

func windowFlux(bucket string, since time.Time) string {
	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: %s)%s
	|> sort(columns: ["_time"])`, bucket, since.UTC().Format(time.RFC3339Nano), pivotFlux)
}

func latestFlux(bucket string) string {
	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: 0)%s
	|> sort(columns: ["_time"], desc: true)
	|> limit(n: 1)`, bucket, pivotFlux)
}

func measurementFromRecord(rec *query.FluxRecord) (weather.Measurement, error) {
	var m weather.Measurement
	var err error

	m.Source, _ = rec.ValueByKey("source").(string)
	if m.Lat, err = tagFloat(rec, "lat"); err != nil {
		return m, err
	}
	if m.Lon, err = tagFloat(rec, "lon"); err != nil {
		return m, err
	}
	if m.Temperature2m, err = fieldFloat(rec, fieldTemperature); err != nil {
		return m, err
	}
	if m.RelativeHumidity2m, err = fieldFloat(rec, fieldHumidity); err != nil {
		return m, err
	}
	if m.WindSpeed10m, err = fieldFloat(rec, fieldWindSpeed); err != nil {
		return m, err
	}
	m.Timestamp = rec.Time().UTC()
	return m, nil
}

func tagFloat(rec *query.FluxRecord, key string) (float64, error) {
	s, ok := rec.ValueByKey(key).(string)
	if !ok {
		return 0, fmt.Errorf("missing tag %q", key)
	}
	return strconv.ParseFloat(s, 64)
}

func fieldFloat(rec *query.FluxRecord, key string) (float64, error) {
	switch v := rec.ValueByKey(key).(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("missing field %q", key)
	}
}
