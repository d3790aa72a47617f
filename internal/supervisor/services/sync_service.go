// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package services adapts Cinecord's long-running components to
// suture.Service.
package services

import (
	"context"
	"fmt"
)

// StartStopManager is the lifecycle of *sync.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService runs the presence sync loop under supervision.
//
// Serve starts the manager, blocks until ctx is cancelled, then stops it.
// Stop waits for the in-flight tick and closes the Discord connection.
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService wraps manager.
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "presence-sync",
	}
}

// Serve implements suture.Service. A Start failure is returned so suture
// restarts the service with backoff.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync manager start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync manager stop failed: %w", err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *SyncService) String() string {
	return s.name
}
