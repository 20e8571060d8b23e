package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flows, one row per (routing_id, change_set_id) scope. The
			-- published scope uses an empty change_set_id so it shares the
			-- composite key with draft scopes.
			CREATE TABLE flows (
				routing_id VARCHAR(255) NOT NULL,
				change_set_id VARCHAR(255) NOT NULL DEFAULT '',
				init_segment VARCHAR(255) NOT NULL DEFAULT '',
				hooks JSONB,
				source_id VARCHAR(255),
				supported_languages JSONB,
				default_language VARCHAR(50),
				validation JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (routing_id, change_set_id)
			);

			CREATE INDEX idx_flows_routing_id ON flows(routing_id);

			-- Segments are owned by their scope and die with it. position
			-- preserves array order; segment_order is the coarser display
			-- ordering applied in bulk.
			CREATE TABLE segments (
				routing_id VARCHAR(255) NOT NULL,
				change_set_id VARCHAR(255) NOT NULL DEFAULT '',
				segment_name VARCHAR(255) NOT NULL,
				segment_type VARCHAR(255) NOT NULL,
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				config JSONB NOT NULL DEFAULT '[]',
				transitions JSONB NOT NULL DEFAULT '[]',
				hooks JSONB,
				is_active BOOLEAN NOT NULL DEFAULT true,
				is_terminal BOOLEAN NOT NULL DEFAULT false,
				segment_order INT NOT NULL DEFAULT 0,
				position INT NOT NULL DEFAULT 0,
				ui_state JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (routing_id, change_set_id, segment_name),
				FOREIGN KEY (routing_id, change_set_id)
					REFERENCES flows(routing_id, change_set_id) ON DELETE CASCADE
			);

			CREATE INDEX idx_segments_scope ON segments(routing_id, change_set_id);

			-- Change-set envelopes. Rows are never deleted: published and
			-- discarded change sets stay as history.
			CREATE TABLE change_sets (
				routing_id VARCHAR(255) NOT NULL,
				change_set_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'discarded')),
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				discarded_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (routing_id, change_set_id)
			);

			CREATE INDEX idx_change_sets_routing_id ON change_sets(routing_id);
			CREATE INDEX idx_change_sets_status ON change_sets(status);
		`,
	}
}
