package bandwidth

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor tracks request/response bandwidth of the status API
type Monitor struct {
	bytesReceived *prometheus.CounterVec
	bytesSent     *prometheus.CounterVec
	requestSize   *prometheus.HistogramVec
	responseSize  *prometheus.HistogramVec

	totalReceived atomic.Int64
	totalSent     atomic.Int64
	totalRequests atomic.Int64
}

// Stats are aggregate totals since daemon start
type Stats struct {
	TotalBytesReceived int64
	TotalBytesSent     int64
	TotalRequests      int64
}

// NewMonitor creates a bandwidth monitor and registers its metric vectors
// with the given registerer (nil means the default registry)
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		bytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botkeeper_http_request_bytes_total",
				Help: "Total bytes received in status API requests",
			},
			[]string{"method", "endpoint"},
		),
		bytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botkeeper_http_response_bytes_total",
				Help: "Total bytes sent in status API responses",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "botkeeper_http_request_size_bytes",
				Help:    "Status API request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),
		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "botkeeper_http_response_size_bytes",
				Help:    "Status API response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint", "status"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bytesReceived, m.bytesSent, m.requestSize, m.responseSize)

	return m
}

// Middleware returns HTTP middleware that tracks bandwidth
func (m *Monitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		method := r.Method

		m.totalRequests.Add(1)

		requestSize := r.ContentLength
		if requestSize > 0 {
			m.bytesReceived.WithLabelValues(method, endpoint).Add(float64(requestSize))
			m.requestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
			m.totalReceived.Add(requestSize)
		}

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		if rw.bytesWritten > 0 {
			status := fmt.Sprintf("%d", rw.statusCode)
			m.bytesSent.WithLabelValues(method, endpoint, status).Add(float64(rw.bytesWritten))
			m.responseSize.WithLabelValues(method, endpoint, status).Observe(float64(rw.bytesWritten))
			m.totalSent.Add(int64(rw.bytesWritten))
		}
	})
}

// GetStats returns aggregate bandwidth totals
func (m *Monitor) GetStats() Stats {
	return Stats{
		TotalBytesReceived: m.totalReceived.Load(),
		TotalBytesSent:     m.totalSent.Load(),
		TotalRequests:      m.totalRequests.Load(),
	}
}

type responseWriter struct {
	http.ResponseWriter
	bytesWritten int
	statusCode   int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
