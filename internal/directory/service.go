// Package directory implements the instance directory: a gRPC-reachable
// service that tracks live OoP module instances by (module_name,
// instance_id).
package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modkit/pkg/logging"

	"github.com/google/uuid"
)

// Client is the transport-agnostic interface every OoP module's
// heartbeat loop and bootstrap code talks to. The reference binding is
// gRPC (grpc.go); Service itself also satisfies it directly for
// in-process callers and tests.
type Client interface {
	Register(ctx context.Context, moduleName string, instanceID uuid.UUID, metadata map[string]string) error
	Heartbeat(ctx context.Context, moduleName string, instanceID uuid.UUID) error
	Deregister(ctx context.Context, moduleName string, instanceID uuid.UUID) error
}

type entry struct {
	metadata map[string]string
	lastSeen time.Time
}

func key(moduleName string, instanceID uuid.UUID) string {
	return moduleName + "/" + instanceID.String()
}

// Service is the directory's live-instance table. All three operations
// are idempotent at the protocol level: registering twice refreshes the
// row, heartbeating an unknown instance is a no-op error the caller logs
// and retries next tick, deregistering twice is a no-op.
type Service struct {
	mu              sync.Mutex
	entries         map[string]*entry
	heartbeatWindow time.Duration // an instance is stale after this long without a heartbeat
}

// NewService returns a directory Service. heartbeatInterval is the
// expected per-instance heartbeat period; the staleness window is 3x
// that interval, so two missed ticks don't evict a healthy instance.
func NewService(heartbeatInterval time.Duration) *Service {
	return &Service{
		entries:         make(map[string]*entry),
		heartbeatWindow: 3 * heartbeatInterval,
	}
}

func (s *Service) Register(ctx context.Context, moduleName string, instanceID uuid.UUID, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(moduleName, instanceID)] = &entry{metadata: metadata, lastSeen: time.Now()}
	return nil
}

func (s *Service) Heartbeat(ctx context.Context, moduleName string, instanceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(moduleName, instanceID)]
	if !ok {
		return fmt.Errorf("unknown instance %s/%s", moduleName, instanceID)
	}
	e.lastSeen = time.Now()
	return nil
}

func (s *Service) Deregister(ctx context.Context, moduleName string, instanceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key(moduleName, instanceID))
	return nil
}

// LiveInstance describes one row for read-only reporting (e.g.
// HostRuntime's Running-phase directory monitor).
type LiveInstance struct {
	ModuleName string
	InstanceID uuid.UUID
	LastSeen   time.Time
	Stale      bool
}

// Live returns a snapshot of every row, with Stale set on rows whose last
// heartbeat is past the staleness window. Stale rows stay in the table
// until SweepStale removes them.
func (s *Service) Live() []LiveInstance {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make([]LiveInstance, 0, len(s.entries))
	for k, e := range s.entries {
		moduleName, instanceID := splitKey(k)
		out = append(out, LiveInstance{
			ModuleName: moduleName,
			InstanceID: instanceID,
			LastSeen:   e.lastSeen,
			Stale:      now.Sub(e.lastSeen) > s.heartbeatWindow,
		})
	}
	return out
}

// SweepStale removes entries whose last heartbeat is older than the
// staleness window. Intended to run periodically from a Running-phase
// background task on the directory's own child token.
func (s *Service) SweepStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.lastSeen) > s.heartbeatWindow {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func splitKey(k string) (string, uuid.UUID) {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == '/' {
			id, _ := uuid.Parse(k[i+1:])
			return k[:i], id
		}
	}
	return k, uuid.UUID{}
}

// RunHeartbeatLoop is the per-OoP-module background task: every
// interval, send a heartbeat; on transient error, log and continue; on
// ctx cancellation, exit the loop and attempt a best-effort deregister.
func RunHeartbeatLoop(ctx context.Context, client Client, moduleName string, instanceID uuid.UUID, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deregisterCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := client.Deregister(deregisterCtx, moduleName, instanceID); err != nil {
				logging.Warn("DirectoryClient", "best-effort deregister of %s/%s failed: %v", moduleName, instanceID, err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := client.Heartbeat(ctx, moduleName, instanceID); err != nil {
				logging.Warn("DirectoryClient", "heartbeat for %s/%s failed, retrying next tick: %v", moduleName, instanceID, err)
			}
		}
	}
}
