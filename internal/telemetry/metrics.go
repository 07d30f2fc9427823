package telemetry

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	dbQueriesTotal  *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_http_requests_total",
				Help: "Total HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds by method, route and status code.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "code"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bank_http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests.",
			},
		),
		dbQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_db_queries_total",
				Help: "Total DB method calls by method and status.",
			},
			[]string{"method", "status"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_db_query_duration_seconds",
				Help:    "DB method duration in seconds by method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
	}

	registerer.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.dbQueriesTotal,
		m.dbQueryDuration,
	)

	return m
}

// ObserveHTTP records a finished request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}

	c := strconv.Itoa(code)
	m.httpRequestsTotal.WithLabelValues(method, route, c).Inc()
	m.httpRequestDuration.WithLabelValues(method, route, c).Observe(duration.Seconds())
}

func (m *Metrics) IncHTTPInFlight() {
	if m == nil {
		return
	}

	m.httpRequestsInFlight.Inc()
}

func (m *Metrics) DecHTTPInFlight() {
	if m == nil {
		return
	}

	m.httpRequestsInFlight.Dec()
}

func (m *Metrics) ObserveDB(method, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.dbQueriesTotal.WithLabelValues(method, status).Inc()
	m.dbQueryDuration.WithLabelValues(method, status).Observe(duration.Seconds())
}

// dbPoolCollector exposes sql.DB pool stats, read once per scrape and
// labelled with the store driver.
type dbPoolCollector struct {
	db *sql.DB

	open, inUse, idle                *prometheus.Desc
	waitCount, waitSeconds           *prometheus.Desc
	maxIdleClosed, maxLifetimeClosed *prometheus.Desc
}

func newDBPoolCollector(db *sql.DB, driver string) *dbPoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, nil, prometheus.Labels{"driver": driver})
	}

	return &dbPoolCollector{
		db:                db,
		open:              desc("bank_db_pool_open_connections", "Open database connections."),
		inUse:             desc("bank_db_pool_in_use_connections", "In-use database connections."),
		idle:              desc("bank_db_pool_idle_connections", "Idle database connections."),
		waitCount:         desc("bank_db_pool_wait_count_total", "Total number of waits for a free connection."),
		waitSeconds:       desc("bank_db_pool_wait_duration_seconds_total", "Total time blocked waiting for a free connection in seconds."),
		maxIdleClosed:     desc("bank_db_pool_max_idle_closed_total", "Total connections closed due to MaxIdleConns."),
		maxLifetimeClosed: desc("bank_db_pool_max_lifetime_closed_total", "Total connections closed due to ConnMaxLifetime."),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.inUse
	ch <- c.idle
	ch <- c.waitCount
	ch <- c.waitSeconds
	ch <- c.maxIdleClosed
	ch <- c.maxLifetimeClosed
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.db.Stats()

	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(st.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(st.InUse))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(st.Idle))
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(st.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitSeconds, prometheus.CounterValue, st.WaitDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.maxIdleClosed, prometheus.CounterValue, float64(st.MaxIdleClosed))
	ch <- prometheus.MustNewConstMetric(c.maxLifetimeClosed, prometheus.CounterValue, float64(st.MaxLifetimeClosed))
}

// RegisterDBPoolMetrics exports the pool stats of db under the given driver
// label. Registering the same driver twice is a no-op.
func RegisterDBPoolMetrics(db *sql.DB, driver string, registerer prometheus.Registerer) error {
	if db == nil {
		return errors.New("db is nil")
	}
	if driver == "" {
		return errors.New("driver is empty")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	if err := registerer.Register(newDBPoolCollector(db, driver)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}

	return nil
}
