package media

import "github.com/prometheus/client_golang/prometheus"

var (
	uploads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "media",
		Name:      "uploads_total",
		Help:      "Number of images stored",
	})
	uploadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "media",
		Name:      "upload_failures_total",
		Help:      "Number of failed image uploads",
	})
	uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "media",
		Name:      "upload_bytes_total",
		Help:      "Number of image bytes stored",
	})
)

func init() {
	prometheus.MustRegister(uploads, uploadFailures, uploadBytes)
}
