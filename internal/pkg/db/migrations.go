package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migration is one idempotent schema step.
type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(255) PRIMARY KEY,
			email VARCHAR(255) UNIQUE,
			first_name VARCHAR(255),
			last_name VARCHAR(255),
			profile_image_url VARCHAR(1024),
			coin_balance BIGINT NOT NULL DEFAULT 0 CHECK (coin_balance >= 0),
			total_participations BIGINT NOT NULL DEFAULT 0,
			total_wins BIGINT NOT NULL DEFAULT 0,
			total_earnings NUMERIC(10, 2) NOT NULL DEFAULT 0,
			current_streak INT NOT NULL DEFAULT 0,
			last_check_in TIMESTAMPTZ,
			is_vip BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_earnings ON users(total_earnings DESC);
		`,
	},
	{
		name: "draws table",
		sql: `
		CREATE TABLE IF NOT EXISTS draws (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			prize_amount NUMERIC(10, 2) NOT NULL CHECK (prize_amount >= 0),
			entry_fee BIGINT NOT NULL CHECK (entry_fee >= 0),
			max_participants BIGINT CHECK (max_participants >= 0),
			current_participants BIGINT NOT NULL DEFAULT 0,
			draw_time TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			winner_id VARCHAR(255) REFERENCES users(id),
			prize_image_url VARCHAR(1024),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (max_participants IS NULL OR current_participants <= max_participants),
			CHECK (NOT is_completed OR winner_id IS NOT NULL)
		);
		CREATE INDEX IF NOT EXISTS idx_draws_open ON draws(draw_time) WHERE is_active AND NOT is_completed;
		`,
	},
	{
		name: "participations table",
		sql: `
		CREATE TABLE IF NOT EXISTS participations (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES users(id),
			draw_id BIGINT NOT NULL REFERENCES draws(id),
			coins_spent BIGINT NOT NULL CHECK (coins_spent >= 0),
			participated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_participations_draw ON participations(draw_id, id);
		CREATE INDEX IF NOT EXISTS idx_participations_user ON participations(user_id, participated_at DESC);
		`,
	},
	{
		name: "transactions table",
		sql: `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES users(id),
			type VARCHAR(50) NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			description VARCHAR(512) NOT NULL,
			related_draw_id BIGINT REFERENCES draws(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		`,
	},
	{
		name: "winners table",
		sql: `
		CREATE TABLE IF NOT EXISTS winners (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES users(id),
			draw_id BIGINT NOT NULL UNIQUE REFERENCES draws(id),
			prize_amount NUMERIC(10, 2) NOT NULL,
			announced_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			celebration_video_url VARCHAR(1024),
			stats_applied BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_winners_announced ON winners(announced_at DESC);
		`,
	},
}

// Migrate applies the schema. Every step is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
