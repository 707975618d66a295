package telemetry

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/config"
)

// Exporter mirrors collected snapshots into InfluxDB for offline analysis.
// When Influx is not configured every write is a silent no-op; the in-memory
// history remains the system of record either way.
type Exporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	cfg      config.InfluxConfig
}

func NewExporter(cfg config.InfluxConfig) *Exporter {
	if cfg.Host == "" || cfg.Token == "" {
		return &Exporter{cfg: cfg}
	}

	client := influxdb2.NewClient(cfg.Host, cfg.Token)
	org := "default"

	return &Exporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, cfg.Database),
		cfg:      cfg,
	}
}

func (e *Exporter) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

func (e *Exporter) CheckStatus() (bool, string) {
	if e.writeAPI == nil {
		return false, "InfluxDB not configured. Set INFLUX_HOST, INFLUX_TOKEN, INFLUX_DATABASE"
	}
	return true, ""
}

// WriteServiceMetrics persists one snapshot as a service_metrics point.
func (e *Exporter) WriteServiceMetrics(ctx context.Context, m telemetrysource.ServiceMetrics) error {
	if e.writeAPI == nil {
		return nil
	}

	pt := influxdb2.NewPoint(
		"service_metrics",
		map[string]string{
			"service": m.ServiceName,
		},
		map[string]interface{}{
			"cpu_usage":         m.CPUUsage,
			"memory_usage":      m.MemoryUsage,
			"current_replicas":  m.CurrentReplicas,
			"desired_replicas":  m.DesiredReplicas,
			"response_time_avg": m.ResponseTimeAvg,
			"request_rate":      m.RequestRate,
			"error_rate":        m.ErrorRate,
		},
		m.Timestamp,
	)

	return e.writeAPI.WritePoint(ctx, pt)
}
