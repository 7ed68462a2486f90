package env

import "os"

const (
	logFormatVar  = "LOG_FORMAT"
	workerIDVar   = "WORKER_ID"
	defaultWorker = "worker-0"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// LogFormat reports the requested log encoding ("json" or "console").
func LogFormat() string {
	return Get(logFormatVar, "json")
}

// InstanceID identifies the running worker replica in logs and lock owners.
func InstanceID() string {
	return Get(workerIDVar, defaultWorker)
}
