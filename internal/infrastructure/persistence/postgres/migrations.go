// Package postgres implements the PostgreSQL persistence layer for the merit engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create points ledger tables
-- Version: 001

-- Append-only transaction log. Every point movement is a row here;
-- the log is the source of truth and balances are derived from it.
CREATE TABLE IF NOT EXISTS point_transactions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    type VARCHAR(20) NOT NULL,
    points BIGINT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_tx_type CHECK (type IN ('earned', 'bonus', 'redeemed', 'penalty')),
    CONSTRAINT nonzero_points CHECK (points <> 0),
    CONSTRAINT credit_sign CHECK (
        (type IN ('earned', 'bonus') AND points > 0) OR
        (type IN ('redeemed', 'penalty') AND points < 0)
    )
);

CREATE INDEX IF NOT EXISTS idx_point_transactions_user_id ON point_transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_point_transactions_user_created ON point_transactions(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_point_transactions_user_type ON point_transactions(user_id, type);

-- Materialized running balance, maintained in the same transaction as
-- the log insert. One row per user; absence means balance zero.
CREATE TABLE IF NOT EXISTS point_balances (
    user_id UUID PRIMARY KEY,
    balance BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS point_balances;
DROP TABLE IF EXISTS point_transactions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE MEMBERSHIP
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create membership number and certificate tables
-- Version: 002

-- Membership numbers. The PRIMARY KEY on number enforces global
-- uniqueness across all roles; the UNIQUE on user_id enforces at most
-- one number per user. Both are load-bearing for the allocator.
CREATE TABLE IF NOT EXISTS membership_numbers (
    number VARCHAR(12) PRIMARY KEY,
    user_id UUID NOT NULL UNIQUE,
    role VARCHAR(10) NOT NULL,
    assigned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_number_format CHECK (number ~ '^(STU|TCH|SCH)-[0-9A-F]{8}$'),
    CONSTRAINT valid_member_role CHECK (role IN ('student', 'teacher', 'school'))
);

CREATE INDEX IF NOT EXISTS idx_membership_numbers_user_id ON membership_numbers(user_id);

-- Certificates. UNIQUE on user_id makes issuance idempotent: concurrent
-- awards collide here and the loser reads the winner's row.
CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL UNIQUE,
    certificate_number VARCHAR(12) NOT NULL UNIQUE,
    role VARCHAR(10) NOT NULL,
    issue_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    forced BOOLEAN NOT NULL DEFAULT FALSE,
    eligibility_snapshot JSONB NOT NULL,

    CONSTRAINT valid_cert_role CHECK (role IN ('student', 'teacher', 'school'))
);

CREATE INDEX IF NOT EXISTS idx_certificates_user_id ON certificates(user_id);
CREATE INDEX IF NOT EXISTS idx_certificates_issue_date ON certificates(issue_date DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS certificates;
DROP TABLE IF EXISTS membership_numbers;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE MEMBER PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create member profiles table
-- Version: 003

-- Profile facts consumed by eligibility evaluation. The platform's
-- upstream services keep these columns current; the merit engine only
-- reads them.
CREATE TABLE IF NOT EXISTS member_profiles (
    user_id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    role VARCHAR(10) NOT NULL,
    school_id UUID,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    approved_projects INTEGER NOT NULL DEFAULT 0,
    challenges_participated INTEGER NOT NULL DEFAULT 0,
    rating_avg DECIMAL(3,2) NOT NULL DEFAULT 0.00,
    students_count INTEGER NOT NULL DEFAULT 0,
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_profile_role CHECK (role IN ('student', 'teacher', 'school')),
    CONSTRAINT valid_rating CHECK (rating_avg >= 0 AND rating_avg <= 5),
    CONSTRAINT nonnegative_counts CHECK (
        approved_projects >= 0 AND
        challenges_participated >= 0 AND
        students_count >= 0
    )
);

CREATE INDEX IF NOT EXISTS idx_member_profiles_email ON member_profiles(email);
CREATE INDEX IF NOT EXISTS idx_member_profiles_role ON member_profiles(role);
CREATE INDEX IF NOT EXISTS idx_member_profiles_school_id ON member_profiles(school_id) WHERE school_id IS NOT NULL;
`

const migration003Down = `
DROP TABLE IF EXISTS member_profiles;
`
