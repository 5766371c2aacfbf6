package core

import (
	"time"

	"github.com/agenthands/loregraph/internal/core/community"
	"github.com/agenthands/loregraph/internal/core/model"
)

// toRecords flattens an arena hierarchy into community records, lowest level
// first and in community index order within a level. Every node gets a fresh
// id from newID; parent links are resolved from arena indices.
func toRecords(h *community.Hierarchy, campaignID, runID string, createdAt time.Time, newID func() string) []model.Community {
	ids := make([][]string, len(h.Levels))
	for l, level := range h.Levels {
		ids[l] = make([]string, len(level.Communities))
		for c := range level.Communities {
			ids[l][c] = newID()
		}
	}

	var records []model.Community
	for l, level := range h.Levels {
		for c, node := range level.Communities {
			members := h.Members(l, c)
			rec := model.Community{
				ID:              ids[l][c],
				CampaignID:      campaignID,
				RunID:           runID,
				Level:           l,
				MemberEntityIDs: members,
				Size:            len(members),
				InternalWeight:  node.InternalWeight,
				TotalWeight:     node.TotalWeight,
				CreatedAt:       createdAt,
			}
			if node.Parent >= 0 {
				parent := ids[l+1][node.Parent]
				rec.ParentCommunityID = &parent
			}
			records = append(records, rec)
		}
	}
	return records
}

// BuildTrees links community records into trees through ParentCommunityID.
// Records whose parent is absent from the slice become roots. Roots and
// children keep the order they have in communities.
func BuildTrees(communities []model.Community) []*model.Hierarchy {
	nodes := make(map[string]*model.Hierarchy, len(communities))
	for _, c := range communities {
		nodes[c.ID] = &model.Hierarchy{Community: c}
	}

	var roots []*model.Hierarchy
	for _, c := range communities {
		node := nodes[c.ID]
		if c.ParentCommunityID != nil {
			if parent, ok := nodes[*c.ParentCommunityID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
