// Package id provides unique identifier generation for runs and jobs.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique ID with the given prefix.
// Format: <prefix>-<timestamp>-<random>
// Example: run-1701432000-a1b2c3d4e5f6
func Generate(prefix string) string {
	if prefix == "" {
		prefix = "job"
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), random)
}
