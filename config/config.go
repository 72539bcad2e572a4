package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the service. Economy constants are
// validated on load: a bad split or a nonsense window must fail boot, not
// surface mid-settlement.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Revenue split, in whole percent. Must sum to exactly 100.
	OrganizerPercent int
	PlatformPercent  int
	PrizePoolPercent int

	// Business-rule timers, evaluated server-side at call time.
	JoinCutoff    time.Duration
	ExitCutoff    time.Duration
	DisputeWindow time.Duration

	MinWithdrawal int64

	// Teams per room, keyed by game. Parsed from
	// ROOM_CAPACITIES="battle_royale:25,clash_squad:12".
	RoomCapacities map[string]int
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	organizerPct, err := getEnvInt("ORGANIZER_PERCENT", 10)
	if err != nil {
		return nil, err
	}
	platformPct, err := getEnvInt("PLATFORM_PERCENT", 10)
	if err != nil {
		return nil, err
	}
	prizePoolPct, err := getEnvInt("PRIZE_POOL_PERCENT", 80)
	if err != nil {
		return nil, err
	}

	joinCutoff, err := getEnvDuration("JOIN_CUTOFF", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	exitCutoff, err := getEnvDuration("EXIT_CUTOFF", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	disputeWindow, err := getEnvDuration("DISPUTE_WINDOW", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	minWithdrawal, err := getEnvInt("MIN_WITHDRAWAL", 50)
	if err != nil {
		return nil, err
	}

	capacities, err := parseRoomCapacities(os.Getenv("ROOM_CAPACITIES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:      dbURL,
		JWTSecretKey:     jwtKey,
		ServerPort:       port,
		OrganizerPercent: organizerPct,
		PlatformPercent:  platformPct,
		PrizePoolPercent: prizePoolPct,
		JoinCutoff:       joinCutoff,
		ExitCutoff:       exitCutoff,
		DisputeWindow:    disputeWindow,
		MinWithdrawal:    int64(minWithdrawal),
		RoomCapacities:   capacities,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the invariants the economy depends on.
func (c *Config) Validate() error {
	if c.OrganizerPercent < 0 || c.PlatformPercent < 0 || c.PrizePoolPercent < 0 {
		return fmt.Errorf("revenue split percentages must be non-negative")
	}
	if sum := c.OrganizerPercent + c.PlatformPercent + c.PrizePoolPercent; sum != 100 {
		return fmt.Errorf("revenue split must sum to 100 percent, got %d", sum)
	}
	if c.JoinCutoff < 0 || c.ExitCutoff < 0 || c.DisputeWindow < 0 {
		return fmt.Errorf("cutoff and dispute windows must be non-negative")
	}
	if c.MinWithdrawal <= 0 {
		return fmt.Errorf("MIN_WITHDRAWAL must be positive, got %d", c.MinWithdrawal)
	}
	if len(c.RoomCapacities) == 0 {
		return fmt.Errorf("at least one room capacity must be configured")
	}
	for game, capacity := range c.RoomCapacities {
		if capacity < 2 {
			return fmt.Errorf("room capacity for game %q must be at least 2, got %d", game, capacity)
		}
	}
	return nil
}

// RoomCapacityFor resolves the per-room team count for a game.
func (c *Config) RoomCapacityFor(game string) (int, bool) {
	capacity, ok := c.RoomCapacities[game]
	return capacity, ok
}

func parseRoomCapacities(raw string) (map[string]int, error) {
	if raw == "" {
		return map[string]int{
			"battle_royale": 25,
			"clash_squad":   12,
		}, nil
	}
	out := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		game, capStr, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("invalid ROOM_CAPACITIES entry %q, want game:count", pair)
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(capStr))
		if err != nil {
			return nil, fmt.Errorf("invalid room capacity in %q: %w", pair, err)
		}
		out[strings.TrimSpace(game)] = capacity
	}
	return out, nil
}

func getEnvInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
