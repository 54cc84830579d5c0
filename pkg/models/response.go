package models

// AgentResponse is the normalized envelope returned by a route call.
//
// It has no identity beyond the call that produced it and is never persisted
// as an entity; the conversation store records turns, not envelopes.
type AgentResponse struct {
	// Content is the user-facing text.
	Content string `json:"content"`

	// AgentKind names the handler that produced the content, for
	// observability and UI routing.
	AgentKind AgentKind `json:"agent_kind"`

	// ToolsInvoked lists the names of side-effecting operations the handler
	// performed while producing the answer, in invocation order.
	ToolsInvoked []string `json:"tools_invoked,omitempty"`

	// Metadata carries small diagnostic fields (mode, phase timings,
	// classification source). Keys are stable but the set is open-ended.
	Metadata map[string]any `json:"metadata,omitempty"`
}
