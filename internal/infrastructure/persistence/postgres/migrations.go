package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_profiles",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "profile_ledger_indexes",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create profiles table
-- Version: 001

CREATE TABLE IF NOT EXISTS profiles (
    id BIGINT PRIMARY KEY,
    username VARCHAR(64) NOT NULL DEFAULT '',
    name VARCHAR(50) NOT NULL,
    age SMALLINT NOT NULL DEFAULT 0,
    region VARCHAR(4) NOT NULL,
    platform VARCHAR(10) NOT NULL,
    about TEXT NOT NULL DEFAULT '',
    interests TEXT[] NOT NULL DEFAULT '{}',

    -- Flags default to true; there is no read-time fallback.
    visible BOOLEAN NOT NULL DEFAULT TRUE,
    interest_search BOOLEAN NOT NULL DEFAULT TRUE,

    attachments TEXT[] NOT NULL DEFAULT '{}',

    -- Like ledger: ordered ID arrays plus denormalized counters.
    liked BIGINT[] NOT NULL DEFAULT '{}',
    liked_by BIGINT[] NOT NULL DEFAULT '{}',
    matched BIGINT[] NOT NULL DEFAULT '{}',
    liked_count INTEGER NOT NULL DEFAULT 0,
    liked_by_count INTEGER NOT NULL DEFAULT 0,
    matched_count INTEGER NOT NULL DEFAULT 0,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_id CHECK (id > 0),
    CONSTRAINT valid_age CHECK (age = 0 OR (age BETWEEN 13 AND 100)),
    CONSTRAINT valid_region CHECK (region IN ('EU', 'RU', 'SA', 'NA')),
    CONSTRAINT valid_platform CHECK (platform IN ('PC', 'Mobile', 'PS', 'XBOX')),
    CONSTRAINT valid_attachments CHECK (cardinality(attachments) <= 5),
    CONSTRAINT valid_counters CHECK (liked_count >= 0 AND liked_by_count >= 0 AND matched_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_profiles_visible ON profiles(id) WHERE visible;
CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON profiles(created_at);
`

const migration001Down = `
DROP TABLE IF EXISTS profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: LEDGER INDEXES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: GIN indexes for interest and ledger lookups
-- Version: 002

CREATE INDEX IF NOT EXISTS idx_profiles_interests ON profiles USING GIN (interests);
CREATE INDEX IF NOT EXISTS idx_profiles_liked_by ON profiles USING GIN (liked_by);
`

const migration002Down = `
DROP INDEX IF EXISTS idx_profiles_liked_by;
DROP INDEX IF EXISTS idx_profiles_interests;
`
