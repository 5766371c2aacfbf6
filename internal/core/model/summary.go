package model

// ChunkSummary matches the JSON object the community summary prompt asks for.
type ChunkSummary struct {
	Summary string `json:"summary"`
}

type CommunityName struct {
	Name string `json:"name"`
}

// CommunitySummary is produced by the summarization collaborator, never by detection.
type CommunitySummary struct {
	CommunityID  string   `json:"community_id"`
	Name         string   `json:"name"`
	Summary      string   `json:"summary"`
	KeyEntityIDs []string `json:"key_entity_ids"`
}
