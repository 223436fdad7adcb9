package metrics

import "testing"

func TestRegistryRegistersEveryCollectorWithoutPanic(t *testing.T) {
	r := Registry()
	if r == nil {
		t.Fatal("expected a non-nil registry")
	}
	families, err := r.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family")
	}
}

func TestCollectorsAcceptObservationsBeforeRegistration(t *testing.T) {
	TileRequestsTotal.WithLabelValues("tmp2m", "ok").Inc()
	CacheHitsTotal.WithLabelValues("l1", "hit").Inc()
	ProcessRSSBytes.Set(123456)
}
