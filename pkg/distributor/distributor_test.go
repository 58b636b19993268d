package distributor

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
	"github.com/eunomia-sh/eunomia/pkg/registry"
)

// fakeReceiver is an in-memory PolicyReceiver. rejectEndpoints causes Apply
// to return Rejected for the given endpoints; unreachableEndpoints causes a
// transport error instead.
type fakeReceiver struct {
	mu                 sync.Mutex
	applied            map[string]string
	rejectEndpoints    map[string]bool
	unreachableUntil   map[string]int // number of remaining failures before success
}

func newFakeReceiver() *fakeReceiver {
	return &fakeReceiver{
		applied:          make(map[string]string),
		rejectEndpoints:  make(map[string]bool),
		unreachableUntil: make(map[string]int),
	}
}

func (f *fakeReceiver) Apply(_ context.Context, endpoint string, _, _ []byte) (ApplyOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectEndpoints[endpoint] {
		return ApplyOutcome{Accepted: false, Reason: "policy rejected by instance"}, nil
	}
	if f.unreachableUntil[endpoint] > 0 {
		f.unreachableUntil[endpoint]--
		return ApplyOutcome{}, &Error{Kind: ErrInstanceUnreachable, Message: "simulated transport failure"}
	}
	f.applied[endpoint] = "applied"
	return ApplyOutcome{Accepted: true}, nil
}

func (f *fakeReceiver) Status(context.Context, string) (InstanceStatus, error) {
	return InstanceStatus{Healthy: true}, nil
}

func (f *fakeReceiver) Rollback(_ context.Context, endpoint, toVersion string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[endpoint] = "rolled_back:" + toVersion
	return nil
}

func setupRegistryWithBundle(t *testing.T, service, version string) (*registry.Client, *sign.Verifier) {
	t.Helper()
	fr := newFakeOCIServer()
	srv := httptest.NewServer(fr.handler())
	t.Cleanup(srv.Close)

	cache, err := registry.OpenCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	client := registry.NewClient(srv.URL, "", registry.NoAuth{}, cache)

	b, err := bundle.NewBuilder(service, version).AddPolicy(&ast.Policy{
		PackageName: "users.authz",
		Source:      "package users.authz\ndefault allow := false\n",
	}).Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	kp, err := sign.Generate("key-1")
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sb := sign.NewSigner(kp).Sign(b, nil)
	if _, err := client.Push(context.Background(), sb); err != nil {
		t.Fatalf("push: %v", err)
	}

	verifier := sign.NewVerifier().Trust(kp.KeyID, kp.PublicKey)
	return client, verifier
}

func newDistributorForTest(t *testing.T, service, version string, receiver PolicyReceiver) *Distributor {
	t.Helper()
	client, verifier := setupRegistryWithBundle(t, service, version)
	cfg := DefaultRolloutConfig()
	cfg.SoakWindow = time.Millisecond
	cfg.ApplyTimeout = time.Second
	cfg.ApplyMaxAttempts = 2
	d := New(cfg, StaticDiscovery{}, receiver, client, verifier, nil, nil)
	d.Watch(service)
	return d
}

func markHealthy(d *Distributor, service string, instanceIDs ...string) {
	discovered := make([]DiscoveredInstance, len(instanceIDs))
	for i, id := range instanceIDs {
		discovered[i] = DiscoveredInstance{InstanceID: id, Endpoint: "endpoint-" + id}
	}
	now := time.Now()
	d.instances.reconcile(service, discovered, now, time.Minute)
	for _, id := range instanceIDs {
		d.instances.recordProbe(id, true, now, 1)
	}
}

func TestDeployAllAtOnceCompletes(t *testing.T) {
	receiver := newFakeReceiver()
	d := newDistributorForTest(t, "users", "1.0.0", receiver)
	markHealthy(d, "users", "i1", "i2", "i3")

	dep, err := d.Deploy(context.Background(), "users", "1.0.0", AllAtOnceStrategy())
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if dep.State != StateCompleted {
		t.Fatalf("state = %v, want Completed", dep.State)
	}
	if len(dep.Batches) != 1 || len(dep.Batches[0].Succeeded) != 3 {
		t.Fatalf("unexpected batches: %+v", dep.Batches)
	}
}

func TestDeployRejectsConcurrentDeployment(t *testing.T) {
	receiver := newFakeReceiver()
	d := newDistributorForTest(t, "users", "1.0.0", receiver)
	markHealthy(d, "users", "i1")

	sd := d.getOrCreateServiceDeployment("users")
	sd.current = &Deployment{Service: "users", State: StateInProgress}

	_, err := d.Deploy(context.Background(), "users", "1.0.0", AllAtOnceStrategy())
	if err == nil {
		t.Fatal("expected DeploymentInProgress error")
	}
	de, ok := err.(*Error)
	if !ok || de.Kind != ErrDeploymentInProgress {
		t.Fatalf("expected ErrDeploymentInProgress, got %v", err)
	}
}

func TestDeployNoHealthyInstancesFails(t *testing.T) {
	receiver := newFakeReceiver()
	d := newDistributorForTest(t, "users", "1.0.0", receiver)

	_, err := d.Deploy(context.Background(), "users", "1.0.0", AllAtOnceStrategy())
	if err == nil {
		t.Fatal("expected NoInstancesFound error")
	}
	de, ok := err.(*Error)
	if !ok || de.Kind != ErrNoInstancesFound {
		t.Fatalf("expected ErrNoInstancesFound, got %v", err)
	}
}

func TestDeployRollsBackOnRejection(t *testing.T) {
	receiver := newFakeReceiver()
	receiver.rejectEndpoints["endpoint-i2"] = true
	d := newDistributorForTest(t, "users", "2.0.0", receiver)
	markHealthy(d, "users", "i1", "i2")
	// Seed a prior version so rollback has somewhere to go.
	d.instances.setVersion("i1", "1.0.0")
	d.instances.setVersion("i2", "1.0.0")

	dep, err := d.Deploy(context.Background(), "users", "2.0.0", AllAtOnceStrategy())
	if err == nil {
		t.Fatal("expected an error from a rejected rollout")
	}
	if dep.State != StateRolledBack {
		t.Fatalf("state = %v, want RolledBack", dep.State)
	}
}

func TestDeployCancelStopsAtBatchBoundary(t *testing.T) {
	receiver := newFakeReceiver()
	d := newDistributorForTest(t, "users", "1.0.0", receiver)
	d.cfg.SoakWindow = 100 * time.Millisecond
	markHealthy(d, "users", "i1", "i2", "i3")
	d.instances.setVersion("i1", "0.9.0")
	d.instances.setVersion("i2", "0.9.0")
	d.instances.setVersion("i3", "0.9.0")

	var dep *Deployment
	var deployErr error
	done := make(chan struct{})
	go func() {
		dep, deployErr = d.Deploy(context.Background(), "users", "1.0.0", RollingStrategy(1))
		close(done)
	}()

	// Give the first batch time to push and enter its soak wait, then cancel
	// while the rollout mutex is still held by Deploy.
	time.Sleep(20 * time.Millisecond)
	cancelStart := time.Now()
	if err := d.Cancel("users"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if elapsed := time.Since(cancelStart); elapsed > 50*time.Millisecond {
		t.Fatalf("Cancel blocked for %v, want it to return without waiting on the rollout mutex", elapsed)
	}

	<-done
	if deployErr == nil {
		t.Fatal("expected an error from a canceled rollout")
	}
	if dep.State != StateRolledBack {
		t.Fatalf("state = %v, want RolledBack", dep.State)
	}
	if dep.Error != "rollout canceled" {
		t.Fatalf("error = %q, want %q", dep.Error, "rollout canceled")
	}
	if len(dep.Batches) != 1 {
		t.Fatalf("expected exactly 1 batch to have run before cancellation, got %d", len(dep.Batches))
	}
}

func TestMajorityVersion(t *testing.T) {
	instances := []InstanceRecord{
		{InstanceID: "a", Version: "1.0.0"},
		{InstanceID: "b", Version: "1.0.0"},
		{InstanceID: "c", Version: "2.0.0"},
	}
	if got := majorityVersion(instances); got != "1.0.0" {
		t.Errorf("majorityVersion = %q, want 1.0.0", got)
	}
}

func TestBatchFailureBudgetExceeded(t *testing.T) {
	if !batchFailureBudgetExceeded(BatchResult{RejectedCount: 1}, 10, 0.10) {
		t.Error("any rejection should exceed the budget regardless of rate")
	}
	if batchFailureBudgetExceeded(BatchResult{Failed: []string{"a"}}, 100, 0.10) {
		t.Error("1/100 failures should stay within a 10% budget")
	}
	if !batchFailureBudgetExceeded(BatchResult{Failed: []string{"a", "b"}}, 10, 0.10) {
		t.Error("2/10 failures should exceed a 10% budget")
	}
}
