package driver

const (
	SaveCampaignQuery = `
		MERGE (c:Campaign {uuid: $uuid})
		ON CREATE SET c.created_at = $created_at
		SET c.name = $name
		RETURN c.uuid AS uuid
	`

	GetCampaignQuery = `
		MATCH (c:Campaign {uuid: $uuid})
		RETURN c.uuid AS uuid, c.name AS name, c.created_at AS created_at
	`

	SaveEntitiesQuery = `
		UNWIND $entities AS row
		MERGE (n:Entity {uuid: row.uuid})
		SET n.campaign_id = row.campaign_id,
			n.name = row.name,
			n.type = row.type,
			n.summary = row.summary
		RETURN count(n) AS saved
	`

	SaveRelationshipsQuery = `
		UNWIND $relationships AS row
		MATCH (source:Entity {uuid: row.source_uuid})
		MATCH (target:Entity {uuid: row.target_uuid})
		MERGE (source)-[e:RELATES_TO {uuid: row.uuid}]->(target)
		SET e.campaign_id = row.campaign_id,
			e.name = row.type,
			e.weight = row.weight
		RETURN count(e) AS saved
	`

	GetCampaignEntitiesQuery = `
		MATCH (n:Entity {campaign_id: $campaign_id})
		RETURN n.uuid AS uuid, n.campaign_id AS campaign_id, n.name AS name, n.type AS type, n.summary AS summary
		ORDER BY n.uuid
	`

	// Targets are not filtered by campaign: cross-campaign or deleted endpoints
	// must reach the loader so they are reported as dangling.
	GetCampaignRelationshipsQuery = `
		MATCH (n:Entity {campaign_id: $campaign_id})-[e:RELATES_TO]->(m)
		WHERE (e.invalid_at IS NULL OR e.invalid_at = "")
		RETURN e.uuid AS uuid, n.uuid AS source_uuid, m.uuid AS target_uuid, e.name AS type, e.weight AS weight
		ORDER BY e.uuid
	`

	SaveCommunitiesQuery = `
		UNWIND $communities AS row
		CREATE (c:Community {
			uuid: row.uuid,
			campaign_id: row.campaign_id,
			run_id: row.run_id,
			level: row.level,
			member_entity_ids: row.member_entity_ids,
			parent_uuid: row.parent_uuid,
			size: row.size,
			internal_weight: row.internal_weight,
			total_weight: row.total_weight,
			created_at: row.created_at
		})
	`

	SaveCommunityMembersQuery = `
		UNWIND $members AS row
		MATCH (c:Community {uuid: row.community_uuid})
		MATCH (e:Entity {uuid: row.entity_uuid})
		CREATE (c)-[:HAS_MEMBER {campaign_id: row.campaign_id}]->(e)
	`

	SaveCommunityChildrenQuery = `
		UNWIND $links AS row
		MATCH (parent:Community {uuid: row.parent_uuid})
		MATCH (child:Community {uuid: row.child_uuid})
		CREATE (parent)-[:HAS_CHILD]->(child)
	`

	communityColumns = `
		c.uuid AS uuid, c.campaign_id AS campaign_id, c.run_id AS run_id, c.level AS level,
		c.member_entity_ids AS member_entity_ids, c.parent_uuid AS parent_uuid, c.size AS size,
		c.internal_weight AS internal_weight, c.total_weight AS total_weight, c.created_at AS created_at
	`

	GetCommunityByIDQuery = `
		MATCH (c:Community {uuid: $uuid})
		RETURN` + communityColumns

	ListCommunitiesQuery = `
		MATCH (c:Community {campaign_id: $campaign_id})
		WHERE ($level IS NULL OR c.level = $level)
			AND ($run_id = "" OR c.run_id = $run_id)
		RETURN` + communityColumns + `
		ORDER BY level ASC, created_at DESC, uuid ASC
		SKIP $offset
		LIMIT $limit
	`

	GetChildCommunitiesQuery = `
		MATCH (:Community {uuid: $uuid})-[:HAS_CHILD]->(c:Community)
		RETURN` + communityColumns + `
		ORDER BY uuid ASC
	`

	DeleteCampaignCommunitiesQuery = `
		MATCH (c:Community {campaign_id: $campaign_id})
		WHERE ($run_id = "" OR c.run_id = $run_id)
		DETACH DELETE c
		RETURN count(*) AS deleted
	`
)
