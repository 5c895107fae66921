package session

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions live this long without activity before Redis expires them.
const redisTTL = 30 * 24 * time.Hour

// Redis keeps the device's conversation id under a per-device key. Failures
// follow the Store contract: logged, swallowed, Load reports absent.
type Redis struct {
	rdb      *redis.Client
	deviceID string
}

func NewRedis(rdb *redis.Client, deviceID string) *Redis {
	return &Redis{rdb: rdb, deviceID: deviceID}
}

func (r *Redis) key() string {
	return fmt.Sprintf("chat:session:%s", r.deviceID)
}

func (r *Redis) Save(conversationID string) {
	if conversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.rdb.Set(ctx, r.key(), conversationID, redisTTL).Err(); err != nil {
		log.Printf("session: redis save failed: %v", err)
	}
}

func (r *Redis) Load() (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	id, err := r.rdb.Get(ctx, r.key()).Result()
	if err != nil {
		return "", false
	}
	return id, id != ""
}

func (r *Redis) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.rdb.Del(ctx, r.key()).Err(); err != nil {
		log.Printf("session: redis clear failed: %v", err)
	}
}

// Manager hands out the per-device Store: Redis-backed when a client is
// configured, file-backed under the data dir otherwise.
type Manager struct {
	rdb     *redis.Client
	dataDir string
}

func NewManager(rdb *redis.Client, dataDir string) *Manager {
	return &Manager{rdb: rdb, dataDir: dataDir}
}

func (m *Manager) ForDevice(deviceID string) Store {
	if m.rdb != nil {
		return NewRedis(m.rdb, deviceID)
	}
	return NewFile(filepath.Join(m.dataDir, "sessions", deviceID+".json"))
}
