package reconcile

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/metrics"
)

func TestProcessRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	order := testOrder(enums.OrderStatusPending, 1000)
	store := newStubOrderStore(order)

	service, err := NewService(ServiceParams{
		Orders:  store,
		Gateway: &stubLookup{},
		Targets: testTargets(),
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics: metrics.NewWebhookMetrics(reg),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	if err := service.Process(context.Background(), captureEvent(order, "c1", 1000)); err != nil {
		t.Fatalf("capture: %v", err)
	}

	badEvent := authorizeEvent(order, "a1", 1000)
	badEvent.OrderRef = ""
	if err := service.Process(context.Background(), badEvent); err == nil {
		t.Fatal("expected missing order reference to fail")
	}

	captured := enums.EventTypePaymentCaptured.String()
	approved := enums.EventTypePaymentApproved.String()
	if got := counterValue(t, reg, "webhook_events_processed", captured); got != 1 {
		t.Errorf("expected processed=1 for %s, got %f", captured, got)
	}
	if got := counterValue(t, reg, "webhook_events_failed", approved); got != 1 {
		t.Errorf("expected failed=1 for %s, got %f", approved, got)
	}
	if count := histogramCount(t, reg, "webhook_handler_duration_seconds"); count != 2 {
		t.Errorf("expected 2 duration samples, got %d", count)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, eventType string) float64 {
	t.Helper()

	for _, mf := range gatherFamilies(t, reg) {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabel(metric.GetLabel(), "event_type", eventType) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()

	var total uint64
	for _, mf := range gatherFamilies(t, reg) {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetHistogram().GetSampleCount()
		}
	}
	return total
}

func gatherFamilies(t *testing.T, reg *prometheus.Registry) []*dto.MetricFamily {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	return mfs
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
