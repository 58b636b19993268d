package distributor

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/registry"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/tracing"
)

func (d *Distributor) getOrCreateServiceDeployment(service string) *serviceDeployment {
	d.deploymentsMu.Lock()
	defer d.deploymentsMu.Unlock()
	sd, ok := d.deployments[service]
	if !ok {
		sd = &serviceDeployment{}
		d.deployments[service] = sd
	}
	return sd
}

// Deploy implements the staged-rollout algorithm: pull + verify the target
// bundle, compute batches per strategy, push sequentially with per-batch
// soak, and roll back on abort. The service's mutex is held for the whole
// rollout so at most one non-terminal Deployment exists per service.
func (d *Distributor) Deploy(ctx context.Context, service, targetVersion string, strategy Strategy) (result *Deployment, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "rollout.deploy")
	defer span.End()
	tracing.SetBundleAttributes(span, service, targetVersion, "")
	defer func() {
		if result != nil {
			tracing.SetDeploymentAttributes(span, result.DeploymentID, service, strategy.Kind.String())
		}
		if err != nil {
			tracing.SetErrorAttributes(span, err, "rollout_failed")
		}
	}()

	sd := d.getOrCreateServiceDeployment(service)
	sd.mu.Lock()
	defer sd.mu.Unlock()

	if sd.current != nil && !sd.current.State.IsTerminal() {
		return nil, &Error{Kind: ErrDeploymentInProgress, Service: service}
	}

	sd.cancelRequested.Store(false)
	sd.active.Store(true)
	defer sd.active.Store(false)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.DeploymentTimeout)
	defer cancel()

	sb, err := d.registry.Pull(ctx, service, registry.Exact(targetVersion))
	if err != nil {
		return nil, err
	}
	if err := d.verifier.Verify(sb); err != nil {
		return nil, &Error{Kind: ErrPolicyRejected, Service: service, Message: "bundle verification failed", Cause: err}
	}

	healthy := healthyInstances(d.instances.snapshot(service))
	if len(healthy) == 0 {
		return nil, &Error{Kind: ErrNoInstancesFound, Service: service}
	}

	previousVersion := majorityVersion(healthy)
	dep := newDeployment(service, targetVersion, previousVersion, strategy, time.Now())
	dep.State = StateInProgress
	sd.current = dep
	d.persistAndPublish(dep)

	bundleBytes, sigBytes, err := encodeForApply(sb)
	if err != nil {
		dep.State = StateFailed
		dep.Error = err.Error()
		dep.FinishedAt = time.Now()
		d.persistAndPublish(dep)
		return dep, err
	}

	batches := strategy.Batches(healthy)
	var updatedIDs []string
	aborted := false
	canceled := false

	for i, batch := range batches {
		if sd.cancelRequested.Load() {
			aborted = true
			canceled = true
			break
		}
		result := d.pushBatch(ctx, i, batch, bundleBytes, sigBytes, targetVersion)
		dep.Batches = append(dep.Batches, result)
		updatedIDs = append(updatedIDs, result.Succeeded...)
		d.persistAndPublish(dep)

		if batchFailureBudgetExceeded(result, len(batch), d.cfg.BatchFailureRate) {
			aborted = true
			break
		}
		if sd.cancelRequested.Load() {
			aborted = true
			canceled = true
			break
		}
		soakOK := d.soak(ctx, service, updatedIDs, d.cfg.HealthThreshold)
		dep.Batches[len(dep.Batches)-1].SoakPassed = soakOK
		if !soakOK {
			aborted = true
			break
		}
	}

	if aborted {
		dep.State = StateFailed
		if canceled {
			dep.Error = "rollout canceled"
		} else if dep.Error == "" {
			dep.Error = "rollout aborted: failure budget exceeded or soak window health threshold breached"
		}
		if previousVersion == "" {
			// Fresh service: no known-good version to roll back to.
			dep.FinishedAt = time.Now()
			d.persistAndPublish(dep)
			return dep, &Error{Kind: ErrPolicyRejected, Service: service, Message: dep.Error}
		}
		if err := d.rollback(ctx, dep, updatedIDs); err != nil {
			dep.State = StateFailed
			dep.Error = dep.Error + "; rollback failed: " + err.Error()
		} else {
			dep.State = StateRolledBack
		}
		dep.FinishedAt = time.Now()
		d.persistAndPublish(dep)
		return dep, &Error{Kind: ErrPolicyRejected, Service: service, Message: dep.Error}
	}

	for _, id := range updatedIDs {
		d.instances.setVersion(id, targetVersion)
	}
	dep.State = StateCompleted
	dep.FinishedAt = time.Now()
	d.persistAndPublish(dep)
	return dep, nil
}

// pushBatch pushes the target bundle to every instance in batch
// concurrently, retrying transport failures per ApplyMaxAttempts.
func (d *Distributor) pushBatch(ctx context.Context, index int, batch []InstanceRecord, bundleBytes, sigBytes []byte, targetVersion string) BatchResult {
	ctx, span := tracing.Tracer().Start(ctx, "rollout.batch")
	tracing.SetBatchAttributes(span, index, len(batch))
	defer span.End()

	result := BatchResult{BatchIndex: index, StartedAt: time.Now()}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, inst := range batch {
		result.InstanceID = append(result.InstanceID, inst.InstanceID)
		wg.Add(1)
		go func(inst InstanceRecord) {
			defer wg.Done()
			ok, rejected := d.pushOne(ctx, inst.InstanceID, inst.Endpoint, targetVersion, bundleBytes, sigBytes)
			mu.Lock()
			if ok {
				result.Succeeded = append(result.Succeeded, inst.InstanceID)
			} else {
				result.Failed = append(result.Failed, inst.InstanceID)
				if rejected {
					result.RejectedCount++
				}
			}
			mu.Unlock()
		}(inst)
	}
	wg.Wait()
	result.FinishedAt = time.Now()
	return result
}

// pushOne retries a single instance's Apply call up to ApplyMaxAttempts
// times for transport failures. A Rejected outcome is terminal and is not
// retried.
func (d *Distributor) pushOne(ctx context.Context, instanceID, endpoint, version string, bundleBytes, sigBytes []byte) (ok bool, rejected bool) {
	ctx, span := tracing.Tracer().Start(ctx, "instance.apply")
	tracing.SetInstanceAttribute(span, instanceID)
	start := time.Now()
	defer func() {
		tracing.SetDurationAttribute(span, time.Since(start).Milliseconds())
		span.End()
	}()

	var lastErr error
	for attempt := 0; attempt < d.cfg.ApplyMaxAttempts; attempt++ {
		if attempt > 0 {
			tracing.SetRetryAttribute(span, attempt)
			select {
			case <-time.After(backoffFor(attempt)):
			case <-ctx.Done():
				return false, false
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.ApplyTimeout)
		outcome, err := d.receiver.Apply(callCtx, endpoint, bundleBytes, sigBytes)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if outcome.Accepted {
			if d.metrics != nil {
				d.metrics.RecordInstanceApply(instanceID, version)
				d.metrics.RecordInstanceLatency(instanceID, version, time.Since(start).Seconds())
			}
			return true, false
		}
		// Rejected is terminal: verification/compilation failed on the
		// instance, retrying will not help.
		d.logger.Warn("instance rejected policy bundle", "endpoint", endpoint, "reason", outcome.Reason)
		tracing.SetErrorAttributes(span, &Error{Kind: ErrPolicyRejected, Message: outcome.Reason}, "rejected")
		if d.metrics != nil {
			d.metrics.RecordInstanceError(instanceID, "rejected")
		}
		return false, true
	}
	d.logger.Warn("instance unreachable after retries", "endpoint", endpoint, "error", lastErr)
	if lastErr != nil {
		tracing.SetErrorAttributes(span, lastErr, "unreachable")
	}
	if d.metrics != nil {
		d.metrics.RecordInstanceError(instanceID, "unreachable")
	}
	return false, false
}

func backoffFor(attempt int) time.Duration {
	d := 200 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// batchFailureBudgetExceeded implements "abort if >=1 non-retryable failure
// or >10% batch failures": any Rejected outcome aborts immediately,
// regardless of batch size; otherwise the batch's transport-failure rate
// must stay at or under rate.
func batchFailureBudgetExceeded(result BatchResult, batchSize int, rate float64) bool {
	if result.RejectedCount > 0 {
		return true
	}
	if batchSize == 0 {
		return false
	}
	return float64(len(result.Failed))/float64(batchSize) > rate
}

// soak waits the configured soak window, then checks whether the fraction
// of Healthy instances among updatedIDs has stayed at or above threshold.
func (d *Distributor) soak(ctx context.Context, service string, updatedIDs []string, threshold float64) bool {
	if len(updatedIDs) == 0 {
		return true
	}
	select {
	case <-time.After(d.cfg.soakWindowOrDefault()):
	case <-ctx.Done():
		return false
	}

	updated := make(map[string]bool, len(updatedIDs))
	for _, id := range updatedIDs {
		updated[id] = true
	}
	healthyCount := 0
	for _, rec := range d.instances.snapshot(service) {
		if updated[rec.InstanceID] && rec.Status == StatusHealthy {
			healthyCount++
		}
	}
	return float64(healthyCount)/float64(len(updatedIDs)) >= threshold
}

func (cfg RolloutConfig) soakWindowOrDefault() time.Duration {
	if cfg.SoakWindow <= 0 {
		return 30 * time.Second
	}
	return cfg.SoakWindow
}

// rollback pushes previous_version to every instance that received
// target_version, using AllAtOnce.
func (d *Distributor) rollback(ctx context.Context, dep *Deployment, updatedIDs []string) error {
	if len(updatedIDs) == 0 {
		return nil
	}

	targets := make([]InstanceRecord, 0, len(updatedIDs))
	updated := make(map[string]bool, len(updatedIDs))
	for _, id := range updatedIDs {
		updated[id] = true
	}
	for _, rec := range d.instances.snapshot(dep.Service) {
		if updated[rec.InstanceID] {
			targets = append(targets, rec)
		}
	}

	var failures int
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, inst := range targets {
		wg.Add(1)
		go func(inst InstanceRecord) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, d.cfg.ApplyTimeout)
			err := d.receiver.Rollback(callCtx, inst.Endpoint, dep.PreviousVersion)
			cancel()
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				return
			}
			d.instances.setVersion(inst.InstanceID, dep.PreviousVersion)
		}(inst)
	}
	wg.Wait()
	if failures > 0 {
		return &Error{Kind: ErrStateError, Service: dep.Service, Message: "one or more instances failed to roll back"}
	}
	return nil
}

func (d *Distributor) persistAndPublish(dep *Deployment) {
	if d.store != nil {
		if err := d.store.SaveDeployment(dep); err != nil {
			d.logger.Error("failed to persist deployment", "deployment_id", dep.DeploymentID, "error", err)
		}
	}
	d.publish(dep)
}

func healthyInstances(all []InstanceRecord) []InstanceRecord {
	out := make([]InstanceRecord, 0, len(all))
	for _, rec := range all {
		if rec.Status == StatusHealthy {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// majorityVersion returns the version string held by the largest number of
// instances, used as the Deployment's previous_version. Returns "" when
// instances report no version at all (a fresh service).
func majorityVersion(instances []InstanceRecord) string {
	counts := make(map[string]int)
	for _, rec := range instances {
		if rec.Version != "" {
			counts[rec.Version]++
		}
	}
	best, bestCount := "", 0
	versions := make([]string, 0, len(counts))
	for v := range counts {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	for _, v := range versions {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// encodeForApply serializes sb into the (bundle_bytes, signatures_bytes)
// pair the control-plane Apply RPC expects: bundle_bytes is the plain
// tar/gzip archive (no embedded signatures.json), signatures_bytes is the
// detached signature envelope as JSON, matching the on-disk signature
// artifact media type.
func encodeForApply(sb *sign.SignedBundle) (bundleBytes, sigBytes []byte, err error) {
	tmp, err := os.CreateTemp("", "eunomia-apply-*.tar.gz")
	if err != nil {
		return nil, nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := sb.Bundle.Write(path); err != nil {
		return nil, nil, err
	}
	bundleBytes, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	sigBytes, err = json.Marshal(sb.Envelope)
	if err != nil {
		return nil, nil, err
	}
	return bundleBytes, sigBytes, nil
}
