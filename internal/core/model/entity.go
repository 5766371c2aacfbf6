package model

import "time"

// DefaultRelationshipWeight is used for relationships stored without a numeric strength.
const DefaultRelationshipWeight = 1.0

type Campaign struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Entity struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

type Relationship struct {
	ID         string   `json:"id"`
	CampaignID string   `json:"campaign_id"`
	SourceID   string   `json:"source_entity_id"`
	TargetID   string   `json:"target_entity_id"`
	Type       string   `json:"type"`
	Weight     *float64 `json:"weight,omitempty"` // nil means the store had no strength for it
}

// EffectiveWeight returns the stored weight, or DefaultRelationshipWeight when none was recorded.
func (r Relationship) EffectiveWeight() float64 {
	if r.Weight == nil {
		return DefaultRelationshipWeight
	}
	return *r.Weight
}
