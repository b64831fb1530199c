package main

import (
	"fmt"
	"time"
)

type Config struct {
	EventBufferSize      int           `env:"EVENT_BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SubscriptionBuffer   int           `env:"SUBSCRIPTION_BUFFER_SIZE,required=true"`
	BackfillPageSize     int           `env:"BACKFILL_PAGE_SIZE,default=100"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	CharReplacement      string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	AuthSecret           string        `env:"AUTH_SECRET,required=true"`
	SeedDemoUsers        bool          `env:"SEED_DEMO_USERS,default=true"`
	TokenTTL             time.Duration `env:"TOKEN_TTL,default=24h"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
}

// CharacterRune converts the single-character replacement setting; env
// values are strings so the width check happens here.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
