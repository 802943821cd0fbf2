package auth

// Metrics records outcomes of the credential flows.
type Metrics interface {
	RecordLogin(method, result string)
	RecordReissue(result string)
	RecordPasswordReset(stage, result string)
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type noopMetrics struct{}

func (noopMetrics) RecordLogin(string, string) {}

func (noopMetrics) RecordReissue(string) {}

func (noopMetrics) RecordPasswordReset(string, string) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
