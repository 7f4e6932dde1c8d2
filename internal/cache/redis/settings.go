package redis

import (
	"context"
	"strings"
	"time"
)

// SchedulerActiveKey is the flag operators flip to halt production without
// restarting the service.
const SchedulerActiveKey = "factory:scheduler_active"

// heartbeatTTL keeps stale heartbeats from outliving a dead process for long.
const heartbeatTTL = 10 * time.Minute

// SettingsStore implements domain.SettingsStore on Redis: the loop heartbeat
// and the global scheduler on/off flag.
type SettingsStore struct {
	client *Client
}

// NewSettingsStore creates a SettingsStore on the shared client.
func NewSettingsStore(client *Client) *SettingsStore {
	return &SettingsStore{client: client}
}

// SetHeartbeat stamps the given key with a timestamp, proving the production
// loop is alive.
func (s *SettingsStore) SetHeartbeat(ctx context.Context, key string, at time.Time) error {
	return s.client.SetString(ctx, key, at.UTC().Format(time.RFC3339), heartbeatTTL)
}

// SchedulerActive reports the production on/off flag. A missing key counts as
// active so a fresh deployment produces without manual setup; transport
// errors propagate and the caller decides how to degrade.
func (s *SettingsStore) SchedulerActive(ctx context.Context) (bool, error) {
	val, ok, err := s.client.GetString(ctx, SchedulerActiveKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return schedulerFlagActive(val), nil
}

// schedulerFlagActive interprets the stored flag value. Anything that is not
// an explicit "off" spelling counts as active.
func schedulerFlagActive(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "false", "0", "off", "no":
		return false
	default:
		return true
	}
}
