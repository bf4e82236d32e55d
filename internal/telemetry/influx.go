package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/gridsentry/gridchaos/internal/logging"
)

// Config holds InfluxDB v2 connection parameters.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink writes grid health points to InfluxDB through the non-blocking
// write API. Writes are batched and retried by the client; failures are
// logged and otherwise dropped.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      logging.Logger
	done     chan struct{}
}

// NewInfluxSink connects to InfluxDB and starts draining the client's error
// channel. Construction never fails: a misconfigured endpoint only surfaces
// as logged write errors.
func NewInfluxSink(cfg Config, log logging.Logger) *InfluxSink {
	if log == nil {
		log = logging.Noop()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	s := &InfluxSink{
		client:   client,
		writeAPI: writeAPI,
		log:      log,
		done:     make(chan struct{}),
	}
	go s.drainErrors()

	log.Info(context.Background(), "telemetry sink connected",
		logging.String("url", cfg.URL),
		logging.String("bucket", cfg.Bucket),
	)
	return s
}

// RecordGridState enqueues one observation. It never blocks on the network
// and never returns an error.
func (s *InfluxSink) RecordGridState(ctx context.Context, obs Observation) {
	s.writeAPI.WritePoint(pointFrom(obs, time.Now()))
}

// Close flushes pending points and releases the client.
func (s *InfluxSink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
	close(s.done)
}

func (s *InfluxSink) drainErrors() {
	errCh := s.writeAPI.Errors()
	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return
			}
			s.log.Warn(context.Background(), "telemetry write failed", logging.Err(err))
		case <-s.done:
			return
		}
	}
}

// pointFrom builds the grid_health measurement point: the health band and
// experiment context as tags, the raw metrics as fields. Tagging the lineage
// id keeps series from physically distinct grid instances apart.
func pointFrom(obs Observation, ts time.Time) *write.Point {
	return influxdb2.NewPoint(
		"grid_health",
		map[string]string{
			"status":          obs.Status,
			"experiment_id":   obs.Context.ExperimentID,
			"scenario":        obs.Context.Scenario,
			"phase":           string(obs.Context.Phase),
			"lineage_id":      obs.Context.LineageID,
			"mutation_source": string(obs.Context.MutationSource),
		},
		map[string]interface{}{
			"converged":        obs.Converged,
			"min_voltage":      obs.MinVoltagePu,
			"total_load":       obs.TotalLoadMw,
			"total_generation": obs.GenerationMw,
		},
		ts,
	)
}
