package model

// Result records the outcome of one applied operation.
type Result struct {
	RunID       string      `json:"run_id"`
	Seq         uint64      `json:"seq"`
	Op          string      `json:"op"`
	OK          bool        `json:"ok"`
	Code        uint32      `json:"code,omitempty"`
	Error       string      `json:"error,omitempty"`
	Payload     interface{} `json:"payload,omitempty"`
	StateDigest string      `json:"state_digest"`
	AppliedAt   string      `json:"applied_at"`
}
