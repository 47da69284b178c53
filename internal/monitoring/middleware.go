package monitoring

import (
	"net/http"
	"strconv"
	"time"
)

type PrometheusMiddleware struct {
	handler http.Handler
}

func (m *PrometheusMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/metrics" {
		// Сам эндпоинт метрик не считаем
		m.handler.ServeHTTP(w, r)
		return
	}

	ActiveConnections.Inc()
	defer ActiveConnections.Dec()

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	m.handler.ServeHTTP(rec, r)

	// ServeMux проставляет Pattern при маршрутизации; шаблон вместо пути
	// держит число меток ограниченным
	path := r.Pattern
	if path == "" {
		path = "unmatched"
	}
	HttpRequestsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
	HttpRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

func NewPrometheusMiddleware(handlerToWrap http.Handler) *PrometheusMiddleware {
	return &PrometheusMiddleware{handlerToWrap}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
