package token

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestProbesResolveStorePerCall(t *testing.T) {
	calls := 0
	src := DBSource(func() *mongo.Database {
		calls++
		return nil
	})
	probes := StoreProbes(src)

	// 就绪前：每个探测按错误上报（链上视同没找到），不 panic
	for _, p := range probes {
		if _, err := p.TryResolve(context.Background(), "u1"); err == nil {
			t.Fatalf("%s: not-ready store must surface an error", p.Name())
		}
	}
	if calls != len(probes) {
		t.Fatalf("each probe must consult the source, got %d calls", calls)
	}

	// 再跑一轮：库是每次探测时解析的，不是构链时的一次性快照
	for _, p := range probes {
		_, _ = p.TryResolve(context.Background(), "u1")
	}
	if calls != 2*len(probes) {
		t.Fatalf("source must be re-consulted per call, got %d calls", calls)
	}
}

func TestChainOverNotReadyStoreFallsBackToSynced(t *testing.T) {
	probes := StoreProbes(func() *mongo.Database { return nil })
	r := &Resolver{
		AppAProbes: probes,
		Synced:     &fakeSynced{doc: &SyncedToken{Token: "tok-sync", App: "appA"}},
	}
	got := r.Resolve(context.Background(), "u1")
	if got.AppA != "tok-sync" {
		t.Fatalf("chain built before the store is ready must still fall through: %+v", got)
	}
}
