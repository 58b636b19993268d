package distributor

import (
	"context"
	"sync"
	"time"
)

// HealthStatus is an InstanceRecord's last known health.
type HealthStatus int

const (
	StatusUnknown HealthStatus = iota
	StatusHealthy
	StatusUnhealthy
	StatusDraining
)

func (s HealthStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// InstanceRecord is the distributor's view of one enforcement instance. It is
// an eventually-consistent projection maintained solely by the discovery and
// health loops; the rollout planner only ever reads a snapshot of it.
type InstanceRecord struct {
	InstanceID string
	Service    string
	Endpoint   string
	Version    string // empty when unknown
	Status     HealthStatus
	LastSeen   time.Time

	consecutiveFailures int
}

// Discovery is a pluggable source of instance endpoints for a service. A
// static list, a DNS SRV lookup, or an external service registry can all
// implement it.
type Discovery interface {
	Discover(ctx context.Context, service string) ([]DiscoveredInstance, error)
}

// DiscoveredInstance is one endpoint reported by a Discovery source.
type DiscoveredInstance struct {
	InstanceID string
	Endpoint   string
}

// StaticDiscovery returns a fixed list of instances per service, the
// simplest Discovery implementation and the one used in tests and
// single-node deployments.
type StaticDiscovery struct {
	Instances map[string][]DiscoveredInstance
}

func (d StaticDiscovery) Discover(_ context.Context, service string) ([]DiscoveredInstance, error) {
	return d.Instances[service], nil
}

// instanceTable is the sync.RWMutex-protected InstanceRecord map. Discovery
// and the health monitor are its only writers; the rollout planner and
// status queries are readers.
type instanceTable struct {
	mu        sync.RWMutex
	instances map[string]*InstanceRecord // instance_id -> record
}

func newInstanceTable() *instanceTable {
	return &instanceTable{instances: make(map[string]*InstanceRecord)}
}

// snapshot returns a defensive copy of every record for service, so callers
// never observe a record mutating underneath them.
func (t *instanceTable) snapshot(service string) []InstanceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]InstanceRecord, 0, len(t.instances))
	for _, rec := range t.instances {
		if rec.Service == service {
			out = append(out, *rec)
		}
	}
	return out
}

// reconcile merges a fresh Discovery result into the table: new instances
// are inserted as Unknown; instances missing from discovered are retained
// for gracePeriod past their LastSeen and then dropped.
func (t *instanceTable) reconcile(service string, discovered []DiscoveredInstance, now time.Time, gracePeriod time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(discovered))
	for _, d := range discovered {
		seen[d.InstanceID] = true
		rec, ok := t.instances[d.InstanceID]
		if !ok {
			t.instances[d.InstanceID] = &InstanceRecord{
				InstanceID: d.InstanceID,
				Service:    service,
				Endpoint:   d.Endpoint,
				Status:     StatusUnknown,
				LastSeen:   now,
			}
			continue
		}
		rec.Endpoint = d.Endpoint
		rec.LastSeen = now
	}

	for id, rec := range t.instances {
		if rec.Service != service || seen[id] {
			continue
		}
		if now.Sub(rec.LastSeen) > gracePeriod {
			delete(t.instances, id)
		}
	}
}

// recordProbe applies the result of one health probe to instanceID,
// implementing the Unknown->Healthy, Healthy->Unhealthy (after
// failureThreshold consecutive failures), and Unhealthy->Healthy (after one
// success) transitions.
func (t *instanceTable) recordProbe(instanceID string, healthy bool, now time.Time, failureThreshold int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.instances[instanceID]
	if !ok {
		return
	}
	rec.LastSeen = now
	if healthy {
		rec.consecutiveFailures = 0
		rec.Status = StatusHealthy
		return
	}
	rec.consecutiveFailures++
	if rec.consecutiveFailures >= failureThreshold {
		rec.Status = StatusUnhealthy
	}
}

// setVersion updates the last-applied version for instanceID, called by the
// rollout planner once an Apply call against it succeeds.
func (t *instanceTable) setVersion(instanceID, version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.instances[instanceID]; ok {
		rec.Version = version
	}
}
