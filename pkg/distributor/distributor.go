package distributor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/registry"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/health"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/metrics"
)

// serviceDeployment serializes rollout state transitions for one service: the
// mutex is held for the duration of an in-flight rollout, while status/list
// reads only take the table's read lock via Status. active and cancelRequested
// are plain atomics so Cancel can signal a live rollout without contending for
// mu, which Deploy holds for the whole rollout.
type serviceDeployment struct {
	mu      sync.Mutex
	current *Deployment

	active          atomic.Bool
	cancelRequested atomic.Bool
}

// Distributor implements the control plane: fleet discovery, staged
// rollout, health gating, and rollback.
type Distributor struct {
	cfg      RolloutConfig
	discover Discovery
	receiver PolicyReceiver
	registry *registry.Client
	verifier *sign.Verifier
	logger   *slog.Logger
	store    *Store
	metrics  *metrics.Collector
	health   *health.Checker

	instances *instanceTable

	servicesMu sync.RWMutex
	services   map[string]bool

	deploymentsMu sync.RWMutex
	deployments   map[string]*serviceDeployment

	subscribersMu sync.Mutex
	subscribers   map[string][]chan Deployment

	cron *cron.Cron
}

// New constructs a Distributor. store may be nil, in which case Deployment
// and InstanceRecord state is kept in memory only.
func New(cfg RolloutConfig, discover Discovery, receiver PolicyReceiver, registryClient *registry.Client, verifier *sign.Verifier, logger *slog.Logger, store *Store) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Distributor{
		cfg:         cfg,
		discover:    discover,
		receiver:    receiver,
		registry:    registryClient,
		verifier:    verifier,
		logger:      logger.With("component", "distributor"),
		store:       store,
		health:      health.New(cfg.ApplyTimeout),
		instances:   newInstanceTable(),
		services:    make(map[string]bool),
		deployments: make(map[string]*serviceDeployment),
		subscribers: make(map[string][]chan Deployment),
		cron:        cron.New(),
	}
	d.health.RegisterCheck("store", d.checkStore)
	d.health.RegisterCheck("watched_instances", d.checkWatchedInstances)
	return d
}

// checkStore reports the deployment store's reachability. A Distributor run
// without a store (in-memory only) is always considered healthy on this
// check.
func (d *Distributor) checkStore(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	return d.store.Ping(ctx)
}

// checkWatchedInstances reports unhealthy if a watched service has been
// discovered (has at least one known instance) but none of them are
// currently Healthy.
func (d *Distributor) checkWatchedInstances(ctx context.Context) error {
	for _, service := range d.watchedServices() {
		all := d.instances.snapshot(service)
		if len(all) == 0 {
			continue
		}
		if len(healthyInstances(all)) == 0 {
			return fmt.Errorf("service %s has %d known instances, none healthy", service, len(all))
		}
	}
	return nil
}

// HealthChecker returns the distributor's liveness/readiness checker, for a
// long-running process to mount as HTTP endpoints alongside the control
// plane.
func (d *Distributor) HealthChecker() *health.Checker {
	return d.health
}

// Watch registers service for the discovery and health background loops. It
// is idempotent.
func (d *Distributor) Watch(service string) {
	d.servicesMu.Lock()
	defer d.servicesMu.Unlock()
	d.services[service] = true
}

func (d *Distributor) watchedServices() []string {
	d.servicesMu.RLock()
	defer d.servicesMu.RUnlock()
	out := make([]string, 0, len(d.services))
	for s := range d.services {
		out = append(out, s)
	}
	return out
}

// Start begins the discovery and health probing cron jobs. It also replays
// any persisted non-terminal Deployment as Failed with StateError, per the
// resolved "previous_version undefined on restart" design decision: an
// in-flight rollout interrupted by a crash is never resumed.
func (d *Distributor) Start(ctx context.Context) error {
	if d.store != nil {
		stale, err := d.store.LoadNonTerminalDeployments()
		if err != nil {
			return fmt.Errorf("load persisted deployments: %w", err)
		}
		for _, dep := range stale {
			dep.State = StateFailed
			dep.Error = (&Error{Kind: ErrStateError, Service: dep.Service, Message: "deployment was non-terminal at startup"}).Error()
			dep.FinishedAt = time.Now()
			d.deploymentsMu.Lock()
			d.deployments[dep.Service] = &serviceDeployment{current: dep}
			d.deploymentsMu.Unlock()
			if err := d.store.SaveDeployment(dep); err != nil {
				d.logger.Error("failed to persist recovered deployment", "service", dep.Service, "error", err)
			}
			d.logger.Warn("marked stale non-terminal deployment as failed on restart",
				"service", dep.Service, "deployment_id", dep.DeploymentID)
		}
	}

	discoveryExpr := fmt.Sprintf("@every %s", d.cfg.DiscoveryInterval)
	if _, err := d.cron.AddFunc(discoveryExpr, func() { d.runDiscovery(ctx) }); err != nil {
		return fmt.Errorf("schedule discovery loop: %w", err)
	}
	healthExpr := fmt.Sprintf("@every %s", d.cfg.HealthProbeInterval)
	if _, err := d.cron.AddFunc(healthExpr, func() { d.runHealthProbe(ctx) }); err != nil {
		return fmt.Errorf("schedule health loop: %w", err)
	}
	d.cron.Start()

	go func() {
		<-ctx.Done()
		d.cron.Stop()
	}()
	return nil
}

// Stop halts the background loops, waiting for any in-flight run to finish.
func (d *Distributor) Stop() {
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
}

func (d *Distributor) runDiscovery(ctx context.Context) {
	now := time.Now()
	for _, service := range d.watchedServices() {
		found, err := d.discover.Discover(ctx, service)
		if err != nil {
			d.logger.Warn("discovery failed", "service", service, "error", err)
			continue
		}
		d.instances.reconcile(service, found, now, d.cfg.InstanceGracePeriod)
	}
}

func (d *Distributor) runHealthProbe(ctx context.Context) {
	now := time.Now()
	for _, service := range d.watchedServices() {
		for _, rec := range d.instances.snapshot(service) {
			probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ApplyTimeout)
			status, err := d.receiver.Status(probeCtx, rec.Endpoint)
			cancel()
			healthy := err == nil && status.Healthy
			d.instances.recordProbe(rec.InstanceID, healthy, now, d.cfg.HealthFailureThreshold)
			if d.metrics != nil {
				d.metrics.UpdateInstanceHealth(rec.InstanceID, healthy)
				if err != nil {
					d.metrics.RecordInstanceError(rec.InstanceID, "probe_failed")
				}
			}
		}
	}
}

// SetMetrics attaches a metrics.Collector that the distributor reports
// instance health and apply metrics to. Safe to call before Start; nil
// disables reporting (the default).
func (d *Distributor) SetMetrics(c *metrics.Collector) {
	d.metrics = c
}

// Status returns the current (or last-completed) Deployment for service, if
// one exists, and a snapshot of the service's InstanceRecords.
func (d *Distributor) Status(service string) (*Deployment, []InstanceRecord) {
	d.deploymentsMu.RLock()
	sd, ok := d.deployments[service]
	d.deploymentsMu.RUnlock()

	var dep *Deployment
	if ok {
		sd.mu.Lock()
		if sd.current != nil {
			cp := *sd.current
			dep = &cp
		}
		sd.mu.Unlock()
	}
	return dep, d.instances.snapshot(service)
}

// Cancel requests cancellation of service's in-flight Deployment. It is a
// no-op if the Deployment is already terminal or none exists. Cancel never
// blocks on the rollout mutex: Deploy observes the flag at batch boundaries,
// lets the in-flight batch finish, then runs rollback.
func (d *Distributor) Cancel(service string) error {
	d.deploymentsMu.RLock()
	sd, ok := d.deployments[service]
	d.deploymentsMu.RUnlock()
	if !ok {
		return &Error{Kind: ErrStateError, Service: service, Message: "no deployment to cancel"}
	}
	if !sd.active.Load() {
		return nil
	}
	sd.cancelRequested.Store(true)
	return nil
}

// Subscribe returns a channel that receives a copy of service's Deployment
// every time it changes, for progress streaming over the control-plane RPC.
// The channel is closed when ctx is done.
func (d *Distributor) Subscribe(ctx context.Context, service string) <-chan Deployment {
	ch := make(chan Deployment, 8)
	d.subscribersMu.Lock()
	d.subscribers[service] = append(d.subscribers[service], ch)
	d.subscribersMu.Unlock()

	go func() {
		<-ctx.Done()
		d.subscribersMu.Lock()
		defer d.subscribersMu.Unlock()
		subs := d.subscribers[service]
		for i, c := range subs {
			if c == ch {
				d.subscribers[service] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (d *Distributor) publish(dep *Deployment) {
	d.subscribersMu.Lock()
	defer d.subscribersMu.Unlock()
	cp := *dep
	for _, ch := range d.subscribers[dep.Service] {
		select {
		case ch <- cp:
		default:
		}
	}
}
