package model

import "time"

// Community is one persisted node of a detection run's hierarchy.
// MemberEntityIDs is always the flattened, ascending set of raw entity ids,
// so a record at any level is self-describing.
type Community struct {
	ID                string    `json:"id"`
	CampaignID        string    `json:"campaign_id"`
	RunID             string    `json:"run_id"`
	Level             int       `json:"level"`
	MemberEntityIDs   []string  `json:"member_entity_ids"`
	ParentCommunityID *string   `json:"parent_community_id"`
	Size              int       `json:"size"`
	InternalWeight    float64   `json:"internal_weight"`
	TotalWeight       float64   `json:"total_weight"`
	CreatedAt         time.Time `json:"created_at"`
}

// Hierarchy is a root-to-leaf view over the communities of one run.
type Hierarchy struct {
	Community Community    `json:"community"`
	Children  []*Hierarchy `json:"children,omitempty"`
}

// Walk visits h and its descendants depth-first, parents before children.
func (h *Hierarchy) Walk(fn func(*Hierarchy)) {
	if h == nil {
		return
	}
	fn(h)
	for _, child := range h.Children {
		child.Walk(fn)
	}
}
