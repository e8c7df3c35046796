package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot keys and lifetimes
const (
	LatestScanKey = "scan:latest"
	TTLScan       = 24 * time.Hour // 최근 스캔 결과는 하루 보관
)

// SnapshotStore shares JSON snapshots (e.g. the latest scan result) between
// the scheduler daemon and one-off CLI invocations.
// A disabled client makes every call a no-op miss.
// ⭐ SSOT: 프로세스 간 결과 공유는 여기서만
type SnapshotStore struct {
	client *Client
	prefix string
}

// NewSnapshotStore creates a snapshot store under prefix
func NewSnapshotStore(client *Client, prefix string) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		prefix: prefix,
	}
}

func (s *SnapshotStore) key(name string) string {
	return fmt.Sprintf("%s:snapshot:%s", s.prefix, name)
}

// Enabled reports whether snapshots are actually stored
func (s *SnapshotStore) Enabled() bool {
	return s.client != nil && s.client.Enabled()
}

// Put stores value as JSON with a TTL
func (s *SnapshotStore) Put(ctx context.Context, name string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("snapshot marshal failed: %w", err)
	}
	if err := s.client.Redis().Set(ctx, s.key(name), data, ttl).Err(); err != nil {
		return fmt.Errorf("snapshot write failed: %w", err)
	}
	return nil
}

// Get decodes the snapshot into dest. found is false when the key is absent.
func (s *SnapshotStore) Get(ctx context.Context, name string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	data, err := s.client.Redis().Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("snapshot read failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("snapshot unmarshal failed: %w", err)
	}
	return true, nil
}

// Delete removes a snapshot
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Redis().Del(ctx, s.key(name)).Err()
}
