package httpapi

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

func loggingMiddleware(logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"from":   r.RemoteAddr,
			"dur":    time.Since(start).String(),
		}).Debug("request")
	})
}
