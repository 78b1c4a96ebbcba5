package models

// ActionType is the verb sent to the action endpoint.
type ActionType string

const (
	ActionShoot   ActionType = "shoot"
	ActionUseItem ActionType = "use_item"
)

// ActionRequest is the body of POST /game/{id}/action.
type ActionRequest struct {
	Action   ActionType `json:"action"`
	TargetID *int       `json:"target_id,omitempty"`
	ItemName string     `json:"item_name,omitempty"`
}

// InteractionStartRequest is the body of POST /game/{id}/interaction/start.
type InteractionStartRequest struct {
	Action   ActionType `json:"action"`
	ItemName string     `json:"item_name"`
}

// Ack is the loosely typed acknowledgement returned by write endpoints.
type Ack struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Raw     []byte `json:"-"`
}

// IntPtr is a small helper for optional target ids.
func IntPtr(v int) *int {
	return &v
}
