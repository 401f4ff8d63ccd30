// Package internal holds process-level configuration and operator tooling.
package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel        string `env:"LOG_LEVEL,default=INFO"`
	Host            string `env:"HOST,default=0.0.0.0"`
	Port            int    `env:"PORT,default=8080"`
	DebugPort       int    `env:"DEBUG_PORT,default=8081"`
	CharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	// ConnectionBufferSize bounds the outbound queue of each connection;
	// events past the bound are dropped and recovered through history.
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,default=256"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,default=15s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

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
