package workspace

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"marginalia/internal/gateway"
)

// SyncWatcher detects drift between the cached project and the remote
// store. Each focus tick probes the store's sync version; any mismatch with
// the last version this client observed triggers a full-project refetch.
// This is pull-based reconciliation for "another session changed this
// project while I was away", not live collaboration — and it refetches the
// whole aggregate rather than a delta, which keeps the protocol a single
// counter at the cost of bandwidth on large projects.
type SyncWatcher struct {
	projectID  string
	gw         gateway.ProjectGateway
	cache      *ProjectCache
	refetching atomic.Bool
}

func NewSyncWatcher(projectID string, gw gateway.ProjectGateway, cache *ProjectCache) *SyncWatcher {
	return &SyncWatcher{projectID: projectID, gw: gw, cache: cache}
}

// Check probes the remote sync version and refetches the project if it
// differs from the last version this client observed. It reports whether a
// refetch happened. With no loaded project there is nothing to compare, so
// the probe result is discarded without a refetch.
func (w *SyncWatcher) Check(ctx context.Context) (bool, error) {
	meta, err := w.gw.FetchMeta(ctx, w.projectID)
	if err != nil {
		return false, fmt.Errorf("sync probe: %w", err)
	}

	if !w.cache.Loaded() {
		return false, nil
	}
	if meta.SyncVersion == w.cache.SyncVersion() {
		return false, nil
	}

	if !w.refetching.CompareAndSwap(false, true) {
		// A refetch is already running; don't stack another.
		return false, nil
	}
	defer w.refetching.Store(false)

	project, err := w.gw.Fetch(ctx, w.projectID)
	if err != nil {
		return false, fmt.Errorf("sync refetch: %w", err)
	}
	w.cache.Load(*project)
	return true, nil
}

// Run probes on every focus tick until the context is cancelled.
func (w *SyncWatcher) Run(ctx context.Context, focus FocusSignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-focus.Focus():
			if !ok {
				return
			}
			if _, err := w.Check(ctx); err != nil {
				log.Printf("sync check for project %s: %v", w.projectID, err)
			}
		}
	}
}
