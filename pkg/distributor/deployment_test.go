package distributor

import "testing"

func instances(n int) []InstanceRecord {
	out := make([]InstanceRecord, n)
	for i := range out {
		out[i] = InstanceRecord{InstanceID: string(rune('a' + i))}
	}
	return out
}

func TestAllAtOnceBatches(t *testing.T) {
	batches := AllAtOnceStrategy().Batches(instances(10))
	if len(batches) != 1 || len(batches[0]) != 10 {
		t.Fatalf("expected one batch of 10, got %v", batches)
	}
}

func TestCanaryBatches(t *testing.T) {
	batches := CanaryStrategy(20).Batches(instances(10))
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("canary first batch = %d, want 2", len(batches[0]))
	}
	if len(batches[1]) != 8 {
		t.Errorf("canary second batch = %d, want 8", len(batches[1]))
	}
}

func TestCanaryBatchAtLeastOne(t *testing.T) {
	batches := CanaryStrategy(1).Batches(instances(3))
	if len(batches[0]) != 1 {
		t.Errorf("canary first batch = %d, want at least 1", len(batches[0]))
	}
}

func TestRollingBatches(t *testing.T) {
	batches := RollingStrategy(3).Batches(instances(7))
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{len(batches[0]), len(batches[1]), len(batches[2])}
	if sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [3 3 1]", sizes)
	}
}

func TestDeploymentStateIsTerminal(t *testing.T) {
	cases := map[DeploymentState]bool{
		StatePending:    false,
		StateInProgress: false,
		StateCompleted:  true,
		StateFailed:     true,
		StateRolledBack: true,
	}
	for state, want := range cases {
		if got := state.IsTerminal(); got != want {
			t.Errorf("%v.IsTerminal() = %v, want %v", state, got, want)
		}
	}
}
