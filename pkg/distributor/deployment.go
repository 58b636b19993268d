package distributor

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// DeploymentState is a Deployment's lifecycle stage. Transitions are
// forward-only; Completed, Failed, and RolledBack are terminal.
type DeploymentState int

const (
	StatePending DeploymentState = iota
	StateInProgress
	StateCompleted
	StateFailed
	StateRolledBack
)

func (s DeploymentState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is one of the states a Deployment cannot
// leave once entered.
func (s DeploymentState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateRolledBack:
		return true
	default:
		return false
	}
}

// StrategyKind selects how a Deployment's target instances are batched.
type StrategyKind int

const (
	AllAtOnce StrategyKind = iota
	Canary
	Rolling
)

func (k StrategyKind) String() string {
	switch k {
	case AllAtOnce:
		return "all_at_once"
	case Canary:
		return "canary"
	case Rolling:
		return "rolling"
	default:
		return "unknown"
	}
}

// Strategy is a rollout batching discipline. Percent is used by Canary
// (percentage of the fleet in the first batch); BatchSize is used by
// Rolling (fixed batch size).
type Strategy struct {
	Kind      StrategyKind
	Percent   int
	BatchSize int
}

func AllAtOnceStrategy() Strategy         { return Strategy{Kind: AllAtOnce} }
func CanaryStrategy(percent int) Strategy { return Strategy{Kind: Canary, Percent: percent} }
func RollingStrategy(batchSize int) Strategy {
	return Strategy{Kind: Rolling, BatchSize: batchSize}
}

// Batches splits instances into ordered batches per s. Canary's first batch
// is at least 1 instance; Rolling batches are fixed-size with a final
// shorter batch when N doesn't divide evenly.
func (s Strategy) Batches(instances []InstanceRecord) [][]InstanceRecord {
	n := len(instances)
	if n == 0 {
		return nil
	}
	switch s.Kind {
	case AllAtOnce:
		return [][]InstanceRecord{instances}
	case Canary:
		first := int(math.Ceil(float64(s.Percent) * float64(n) / 100.0))
		if first < 1 {
			first = 1
		}
		if first >= n {
			return [][]InstanceRecord{instances}
		}
		return [][]InstanceRecord{instances[:first], instances[first:]}
	case Rolling:
		size := s.BatchSize
		if size < 1 {
			size = 1
		}
		var batches [][]InstanceRecord
		for i := 0; i < n; i += size {
			end := i + size
			if end > n {
				end = n
			}
			batches = append(batches, instances[i:end])
		}
		return batches
	default:
		return [][]InstanceRecord{instances}
	}
}

// BatchResult records the outcome of pushing the target version to one
// batch of instances.
type BatchResult struct {
	BatchIndex    int
	InstanceID    []string
	Succeeded     []string
	Failed        []string
	RejectedCount int // failures that were Rejected (non-retryable), not transport failures
	StartedAt     time.Time
	FinishedAt    time.Time
	SoakPassed    bool
}

// Deployment is one rollout of (Service, TargetVersion) to a fleet.
type Deployment struct {
	DeploymentID     string
	Service          string
	TargetVersion    string
	PreviousVersion  string // empty when undefined (fresh service)
	Strategy         Strategy
	State            DeploymentState
	StartedAt        time.Time
	FinishedAt       time.Time
	Batches          []BatchResult
	Error            string
}

// newDeployment starts a Deployment in state Pending with a fresh UUID.
func newDeployment(service, targetVersion, previousVersion string, strategy Strategy, now time.Time) *Deployment {
	return &Deployment{
		DeploymentID:    uuid.NewString(),
		Service:         service,
		TargetVersion:   targetVersion,
		PreviousVersion: previousVersion,
		Strategy:        strategy,
		State:           StatePending,
		StartedAt:       now,
	}
}
