package social

import auth "github.com/epik-app/go-auth"

const (
	ResultSuccess = auth.ResultSuccess
	ResultFailure = auth.ResultFailure
)

// Metrics records provider verification outcomes.
type Metrics interface {
	RecordVerification(provider, result string)
	RecordKeySetFetch(provider, result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordVerification(string, string) {}

func (noopMetrics) RecordKeySetFetch(string, string) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
