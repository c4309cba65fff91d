// Package schemas provides embedded JSON schema files for validation.
package schemas

import "embed"

// FS contains all JSON schema files embedded at compile time.
// Access schemas via FS.ReadFile("slo-result/v1.json"), etc.
//
//go:embed */v1.json
var FS embed.FS

const (
	SLOResultV1  = "slo-result/v1.json"
	AgentStateV1 = "agent-state/v1.json"
)
