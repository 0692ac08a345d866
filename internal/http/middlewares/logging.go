package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/backvault/internal/metrics"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
)

// statusRecorder captura el status y los bytes escritos.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging loguea cada request con un logger scoped en el contexto y
// alimenta las métricas HTTP. route es el patrón (no el path real)
// para no explotar la cardinalidad de labels.
func Logging(route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := logger.L().With(
				logger.RequestID(GetRequestID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			ctx := logger.ToContext(r.Context(), reqLog)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			dur := time.Since(start)

			reqLog.Info("request",
				logger.Status(rec.status),
				logger.DurationMs(dur.Milliseconds()),
				logger.Bytes(rec.bytes),
				logger.ClientIP(ClientIP(r)),
			)
			metrics.RecordHTTPRequest(r.Method, route, rec.status, dur)
		})
	}
}
