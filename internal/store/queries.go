package store

const (
	SaveDocumentQuery = `
		MERGE (d:Document {uuid: $uuid})
		SET d.subject_id = $subject_id,
			d.owner_id = $owner_id,
			d.title = $title,
			d.text = $text,
			d.source = $source,
			d.layer = $layer,
			d.priority = $priority,
			d.created_at = $created_at
		RETURN d.uuid AS uuid
	`

	SaveChunkQuery = `
		MATCH (d:Document {uuid: $document_uuid})
		MERGE (c:Chunk {uuid: $uuid})
		SET c.document_uuid = $document_uuid,
			c.subject_id = $subject_id,
			c.ordinal = $ordinal,
			c.text = $text,
			c.layer = $layer,
			c.priority = $priority,
			c.embedding = $embedding,
			c.created_at = $created_at
		MERGE (d)-[:HAS_CHUNK]->(c)
		RETURN c.uuid AS uuid
	`

	DeleteDocumentQuery = `
		MATCH (d:Document {uuid: $uuid})
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE d, c
	`

	GetSubjectChunksQuery = `
		MATCH (c:Chunk {subject_id: $subject_id})
		WHERE c.layer IN $layers
		RETURN c.uuid AS uuid, c.document_uuid AS document_uuid, c.ordinal AS ordinal,
		       c.text AS text, c.layer AS layer, c.priority AS priority,
		       c.embedding AS embedding, c.created_at AS created_at
	`

	GetPriorityChunksQuery = `
		MATCH (c:Chunk {subject_id: $subject_id})
		WHERE c.priority = true AND c.layer IN $layers
		RETURN c.uuid AS uuid, c.document_uuid AS document_uuid, c.ordinal AS ordinal,
		       c.text AS text, c.layer AS layer, c.priority AS priority,
		       c.created_at AS created_at
		ORDER BY c.created_at DESC
		LIMIT $limit
	`

	SaveMessageQuery = `
		MERGE (m:Message {uuid: $uuid})
		SET m.conversation_id = $conversation_id,
			m.role = $role,
			m.content = $content,
			m.layer = $layer,
			m.created_at = $created_at
		RETURN m.uuid AS uuid
	`

	GetRecentMessagesQuery = `
		MATCH (m:Message {conversation_id: $conversation_id})
		RETURN m.uuid AS uuid, m.role AS role, m.content AS content,
		       m.layer AS layer, m.created_at AS created_at
		ORDER BY m.created_at DESC
		LIMIT $limit
	`

	GetOldestMessagesQuery = `
		MATCH (m:Message {conversation_id: $conversation_id})
		RETURN m.uuid AS uuid, m.role AS role, m.content AS content,
		       m.layer AS layer, m.created_at AS created_at
		ORDER BY m.created_at ASC
		LIMIT $limit
	`

	SaveSummaryQuery = `
		CREATE (s:Summary {uuid: $uuid})
		SET s.conversation_id = $conversation_id,
			s.summary = $summary,
			s.message_count = $message_count,
			s.created_at = $created_at
		RETURN s.uuid AS uuid
	`

	GetLatestSummaryQuery = `
		MATCH (s:Summary {conversation_id: $conversation_id})
		RETURN s.uuid AS uuid, s.summary AS summary,
		       s.message_count AS message_count, s.created_at AS created_at
		ORDER BY s.created_at DESC
		LIMIT 1
	`

	SaveMemoryQuery = `
		MERGE (m:Memory {uuid: $uuid})
		SET m.subject_id = $subject_id,
			m.type = $type,
			m.content = $content,
			m.confidence = $confidence,
			m.layer = $layer,
			m.source_message_uuid = $source_message_uuid,
			m.embedding = $embedding,
			m.created_at = $created_at
		RETURN m.uuid AS uuid
	`

	GetSubjectMemoriesQuery = `
		MATCH (m:Memory {subject_id: $subject_id})
		WHERE m.layer IN $layers
		RETURN m.uuid AS uuid, m.type AS type, m.content AS content,
		       m.confidence AS confidence, m.layer AS layer,
		       m.source_message_uuid AS source_message_uuid,
		       m.embedding AS embedding, m.created_at AS created_at
	`

	SavePersonaQuery = `
		MERGE (p:Persona {uuid: $uuid})
		SET p.name = $name,
			p.instructions_public = $instructions_public,
			p.instructions_friends = $instructions_friends,
			p.instructions_intimate = $instructions_intimate,
			p.created_at = $created_at
		RETURN p.uuid AS uuid
	`

	GetPersonaQuery = `
		MATCH (p:Persona {uuid: $uuid})
		RETURN p.uuid AS uuid, p.name AS name,
		       p.instructions_public AS instructions_public,
		       p.instructions_friends AS instructions_friends,
		       p.instructions_intimate AS instructions_intimate,
		       p.created_at AS created_at
	`
)
