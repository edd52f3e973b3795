// Package storage persists committed engine events.
package storage

import (
	"context"
	"fmt"

	"github.com/mselser95/bangr-engine/pkg/types"
)

// Sink is the interface for persisting engine events.
type Sink interface {
	// Store persists one event. Events arrive in sequence order.
	Store(ctx context.Context, ev *types.Event) error

	// Close closes the sink.
	Close() error
}

// Storage modes.
const (
	ModeConsole  = "console"
	ModePostgres = "postgres"
	ModeRedis    = "redis"
)

// ValidMode reports whether mode names a known sink.
func ValidMode(mode string) error {
	switch mode {
	case ModeConsole, ModePostgres, ModeRedis:
		return nil
	default:
		return fmt.Errorf("unknown storage mode %q", mode)
	}
}
