package trustsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// MetricsPath is the backend's Prometheus exposition endpoint.
const MetricsPath = "/metrics"

// Metric families the ops view reads from the exposition.
const (
	metricPrepareTotal      = "hostdeck_earn_prepare_total"
	metricVerifyTotal       = "hostdeck_earn_verify_total"
	metricRewardCoinsTotal  = "hostdeck_earn_reward_coins_total"
	metricFailureRatio      = "hostdeck_earn_failure_ratio"
	metricEffectiveDailyCap = "hostdeck_earn_effective_daily_cap"
)

// OpsMetrics is the subset of backend metrics the dashboard's operations
// view renders: reward-flow volumes, verification outcomes and the adaptive
// daily cap.
type OpsMetrics struct {
	PrepareOK       float64
	PrepareRejected float64

	VerifySuccess   float64
	VerifyInvalid   float64
	VerifyDuplicate float64
	VerifyError     float64

	RewardCoinsTotal  float64
	FailureRatio      float64
	EffectiveDailyCap float64
}

// ParseOpsMetrics extracts the ops view from a Prometheus text exposition.
// Unknown families are ignored; missing families leave their fields zero.
func ParseOpsMetrics(r io.Reader) (*OpsMetrics, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("trustsdk: parse metrics exposition: %w", err)
	}

	out := &OpsMetrics{}

	for _, m := range metricsOf(families[metricPrepareTotal]) {
		switch labelValue(m, "result") {
		case "ok":
			out.PrepareOK += counterValue(m)
		case "rejected":
			out.PrepareRejected += counterValue(m)
		}
	}

	for _, m := range metricsOf(families[metricVerifyTotal]) {
		switch labelValue(m, "result") {
		case "success":
			out.VerifySuccess += counterValue(m)
		case "invalid":
			out.VerifyInvalid += counterValue(m)
		case "duplicate":
			out.VerifyDuplicate += counterValue(m)
		case "error":
			out.VerifyError += counterValue(m)
		}
	}

	for _, m := range metricsOf(families[metricRewardCoinsTotal]) {
		out.RewardCoinsTotal += counterValue(m)
	}
	for _, m := range metricsOf(families[metricFailureRatio]) {
		out.FailureRatio = gaugeValue(m)
	}
	for _, m := range metricsOf(families[metricEffectiveDailyCap]) {
		out.EffectiveDailyCap = gaugeValue(m)
	}

	return out, nil
}

func metricsOf(family *dto.MetricFamily) []*dto.Metric {
	if family == nil {
		return nil
	}
	return family.GetMetric()
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func counterValue(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	// Tolerate untyped expositions.
	return m.GetUntyped().GetValue()
}

func gaugeValue(m *dto.Metric) float64 {
	if g := m.GetGauge(); g != nil {
		return g.GetValue()
	}
	return m.GetUntyped().GetValue()
}

// OpsMetrics fetches and parses the backend's metrics exposition.
func (c *SDKClient) OpsMetrics(ctx context.Context) (*OpsMetrics, error) {
	req, err := c.newRequest(ctx, http.MethodGet, MetricsPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, parseErrorResponse(resp.StatusCode, body)
	}
	return ParseOpsMetrics(resp.Body)
}
