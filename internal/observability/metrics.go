package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockReservationFailure MetricKey = "stock_reservation_failures_total"
	MWebhookEvents           MetricKey = "webhook_events_total"
)

// MetricSpec describes how a metric key is exported.
type MetricSpec struct {
	Help   string
	Labels []string
	// Buckets is only used by histograms.
	Buckets []float64
}

// Specs lists every metric the service records, keyed by metric name.
var Specs = map[MetricKey]MetricSpec{
	MUsecaseRequests:         {Help: "Total number of use case invocations.", Labels: []string{"use_case", "outcome"}},
	MUsecaseDuration:         {Help: "Duration of use case execution in seconds.", Labels: []string{"use_case"}},
	MHTTPRequests:            {Help: "Total number of HTTP requests.", Labels: []string{"method", "route", "status"}},
	MHTTPRequestDuration:     {Help: "HTTP request latency in seconds.", Labels: []string{"method", "route", "status"}},
	MExternalRequests:        {Help: "Calls to external dependencies.", Labels: []string{"peer", "endpoint", "outcome"}},
	MExternalRequestDuration: {Help: "Latency of calls to external dependencies.", Labels: []string{"peer", "endpoint"}},
	MStockReservationFailure: {Help: "Order lines that could not be reserved after payment.", Labels: []string{"source"}},
	MWebhookEvents:           {Help: "Payment gateway webhook events by type and outcome.", Labels: []string{"type", "outcome"}},
}
