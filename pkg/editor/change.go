package editor

// State is the lifecycle state of the flow held by an Editor.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateSaving   State = "saving"
	StateFailed   State = "failed"
)

// editable reports whether graph mutations are accepted. Edits made while a
// save is in flight stay local until the next save.
func (s State) editable() bool {
	return s == StateReady || s == StateSaving
}

type ChangeKind string

const (
	ChangeNodeAdded   ChangeKind = "node_added"
	ChangeNodeRemoved ChangeKind = "node_removed"
	ChangeNodeUpdated ChangeKind = "node_updated"
	ChangeNodeMoved   ChangeKind = "node_moved"
	ChangeEdgeAdded   ChangeKind = "edge_added"
	ChangeEdgeRemoved ChangeKind = "edge_removed"
	ChangeFlowUpdated ChangeKind = "flow_updated"
	ChangeState       ChangeKind = "state_changed"
)

// Change describes one mutation observed by subscribers.
type Change struct {
	Kind   ChangeKind
	NodeID string
	EdgeID string
	State  State
	Err    error // set on state changes caused by a failed load or save
}
