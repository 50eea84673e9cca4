package types

import "time"

// ServiceStatus reports the health of a registered service
type ServiceStatus struct {
	Name      string                 `json:"name"`
	Running   bool                   `json:"running"`
	Healthy   bool                   `json:"healthy"`
	LastCheck time.Time              `json:"last_check"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
