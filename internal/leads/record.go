package leads

import "time"

// LeadRecord is the raw, read-only view of a lead as stored by the CRM.
// The scoring core never mutates it.
type LeadRecord struct {
	ID                string    `json:"id"`
	LeadScore         float64   `json:"lead_score"`
	EngagementScore   float64   `json:"engagement_score"`
	TouchpointCount   float64   `json:"touchpoint_count"`
	CreatedAt         time.Time `json:"created_at"`
	LifecycleState    string    `json:"lifecycle_state"`
	Status            string    `json:"status"`
	EngagementLevel   string    `json:"engagement_level"`
	ApplicationSource string    `json:"application_source"`
	ProgrammeName     string    `json:"programme_name"`
	CampusName        string    `json:"campus_name"`
}
