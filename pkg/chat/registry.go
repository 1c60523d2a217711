package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Dialer establishes a live protocol connection for a session, scoped to the
// given working directory.
type Dialer func(ctx context.Context, sessionID int64, workdir string) (Client, error)

// Registry maps session IDs to live protocol connections. A session has at
// most one connection; tasks for the same session share it. Start/stop of the
// same session is serialized by a per-session lock.
type Registry struct {
	dialer  Dialer
	baseDir string

	mu      sync.Mutex
	clients map[int64]*entry
}

type entry struct {
	mu     sync.Mutex
	client Client
}

// NewRegistry builds a registry that dials new connections with dialer and
// keeps per-session working directories under baseDir.
func NewRegistry(dialer Dialer, baseDir string) *Registry {
	return &Registry{
		dialer:  dialer,
		baseDir: baseDir,
		clients: make(map[int64]*entry),
	}
}

// Acquire returns the live connection for the session, dialing one if none
// exists. Concurrent acquires for the same session wait on the same dial.
func (r *Registry) Acquire(ctx context.Context, sessionID int64) (Client, error) {
	r.mu.Lock()
	e, ok := r.clients[sessionID]
	if !ok {
		e = &entry{}
		r.clients[sessionID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	workdir := filepath.Join(r.baseDir, strconv.FormatInt(sessionID, 10))
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("create session workdir: %w", err)
	}
	client, err := r.dialer(ctx, sessionID, workdir)
	if err != nil {
		return nil, fmt.Errorf("connect session %d: %w", sessionID, err)
	}
	e.client = client
	return client, nil
}

// Release closes and removes the session's connection if present. Releasing
// an unknown session is a no-op.
func (r *Registry) Release(sessionID int64) error {
	r.mu.Lock()
	e, ok := r.clients[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	r.mu.Lock()
	delete(r.clients, sessionID)
	r.mu.Unlock()
	return err
}

// Active reports whether the session currently holds a live connection.
func (r *Registry) Active(sessionID int64) bool {
	r.mu.Lock()
	e, ok := r.clients[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client != nil
}
