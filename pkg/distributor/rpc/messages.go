package rpc

// ApplyRequest carries a bundle archive and its detached signature envelope
// to an enforcement instance.
type ApplyRequest struct {
	BundleBytes []byte `json:"bundle_bytes"`
	Signatures  []byte `json:"signatures"`
}

// ApplyResponse is the instance's verdict on an ApplyRequest.
type ApplyResponse struct {
	Accepted bool   `json:"accepted"`
	Version  string `json:"version,omitempty"`
	Reason   string `json:"reason,omitempty"` // set when Accepted is false
}

// StatusRequest has no fields; Status takes no arguments.
type StatusRequest struct{}

// StatusResponse reports an instance's currently loaded policy version and
// health.
type StatusResponse struct {
	Version  string `json:"version"`
	Healthy  bool   `json:"healthy"`
	LoadedAt int64  `json:"loaded_at"` // unix seconds
}

// RollbackRequest asks an instance to revert to a previously applied
// version.
type RollbackRequest struct {
	ToVersion string `json:"to_version"`
}

// RollbackResponse reports the result of a RollbackRequest.
type RollbackResponse struct {
	Ok     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// SubscribeRequest opens a server-streaming feed of DeploymentUpdate
// messages for service.
type SubscribeRequest struct {
	Service string `json:"service"`
}

// DeploymentUpdate is one item pushed by Subscribe, mirroring the fields of
// a distributor Deployment relevant to an observer.
type DeploymentUpdate struct {
	DeploymentID  string `json:"deployment_id"`
	Service       string `json:"service"`
	TargetVersion string `json:"target_version"`
	State         string `json:"state"`
}
