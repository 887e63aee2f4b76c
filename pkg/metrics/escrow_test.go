package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrowMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEscrowMetrics(reg)

	m.IncOperation("release", "ok")
	m.IncOperation("release", "ok")
	m.IncOperation("fund", "payment_declined")
	m.ObserveGatewayCall("capture", "ok", 300*time.Millisecond)
	m.IncDiscrepancy("funded", "")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "influencehub_escrow_operations_total", "outcome", "ok")
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "influencehub_escrow_operations_total", "outcome", "payment_declined")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "influencehub_gateway_call_duration_seconds", "call", "capture")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, sum, 0.0001)

	got, err = fetchCounterValue(mfs, "influencehub_escrow_reconcile_discrepancies_total", "provider", "unknown")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)
}

func TestNilEscrowMetricsAreNoop(t *testing.T) {
	var m *EscrowMetrics
	m.IncOperation("create", "ok")
	m.ObserveGatewayCall("create", "ok", time.Second)
	m.IncDiscrepancy("funded", "released")

	NewEscrowMetrics(nil).IncOperation("create", "ok")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findLabelled(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findLabelled(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleSum(), nil
}

func findLabelled(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric, nil
			}
		}
	}
	return nil, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}
