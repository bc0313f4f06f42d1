// Package gameserver is the authority boundary in front of the interaction
// router: it owns the NPC instances of this process, serializes every request
// for an instance onto that instance's owner goroutine, and exposes the two
// server entry points over gRPC.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcintent/internal/game/interaction"
	"github.com/cory-johannsen/npcintent/internal/game/npc"
	"github.com/cory-johannsen/npcintent/internal/game/tag"
)

// ErrInstanceNotFound is returned when a request names an instance this host does not own.
var ErrInstanceNotFound = errors.New("npc instance not found")

// ErrHostClosed is returned by Spawn after Close.
var ErrHostClosed = errors.New("npc host closed")

// DefaultMailboxSize is the per-instance queue length used when none is configured.
const DefaultMailboxSize = 64

// request is one queued entry point invocation.
type request struct {
	requester interaction.Requester
	intent    tag.Tag
	interact  bool
}

// Instance is a live NPC owned by this host.
type Instance struct {
	// ID uniquely identifies the instance on this host.
	ID string
	// DefinitionID is the attached definition's ID, or empty when none is attached.
	DefinitionID string

	router  *interaction.Router
	mu      sync.RWMutex // guards closed; held for reading while enqueueing
	closed  bool
	mailbox chan request
	done    chan struct{}
	logger  *zap.Logger
}

// Router returns the instance's router for read-only capability queries.
// Interaction requests must go through the Host entry points.
func (i *Instance) Router() *interaction.Router {
	return i.router
}

// enqueue hands req to the owner goroutine, blocking while the mailbox is full.
func (i *Instance) enqueue(ctx context.Context, req request) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return ErrInstanceNotFound
	}
	select {
	case i.mailbox <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run processes the mailbox in FIFO order until it is closed and drained.
func (i *Instance) run() {
	defer close(i.done)
	for req := range i.mailbox {
		i.process(req)
	}
}

func (i *Instance) process(req request) {
	defer func() {
		if p := recover(); p != nil {
			i.logger.Error("interaction hook panicked",
				zap.String("intent", req.intent.String()),
				zap.Any("panic", p),
			)
		}
	}()
	if req.interact {
		i.router.Interact(req.requester)
		return
	}
	i.router.RequestInteraction(req.requester, req.intent)
}

// stop refuses new requests, waits for in-flight enqueues, and drains the mailbox.
func (i *Instance) stop() {
	i.mu.Lock()
	if !i.closed {
		i.closed = true
		close(i.mailbox)
	}
	i.mu.Unlock()
	<-i.done
}

// Host owns the authoritative NPC instances of this process.
//
// All methods are safe for concurrent use. Requests for one instance are
// executed one at a time, in arrival order, on that instance's goroutine;
// requests for different instances run concurrently.
type Host struct {
	mu          sync.RWMutex
	instances   map[string]*Instance
	closed      bool
	mailboxSize int
	recorder    interaction.Recorder
	gauge       func(int)
	logger      *zap.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithMailboxSize sets the per-instance queue length.
func WithMailboxSize(n int) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.mailboxSize = n
		}
	}
}

// WithRecorder reports every router outcome to rec.
func WithRecorder(rec interaction.Recorder) HostOption {
	return func(h *Host) {
		h.recorder = rec
	}
}

// WithInstanceGauge calls fn with the live instance count after every change.
func WithInstanceGauge(fn func(int)) HostOption {
	return func(h *Host) {
		h.gauge = fn
	}
}

// NewHost creates an empty Host.
//
// Precondition: logger must be non-nil.
func NewHost(logger *zap.Logger, opts ...HostOption) *Host {
	h := &Host{
		instances:   make(map[string]*Instance),
		mailboxSize: DefaultMailboxSize,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Spawn creates an instance for def, begins play, and starts its owner goroutine.
//
// Precondition: def may be nil (the instance then drops every request);
// hooks may be nil.
// Postcondition: Returns the running instance, or ErrHostClosed.
func (h *Host) Spawn(def *npc.Definition, hooks interaction.Hooks) (*Instance, error) {
	return h.SpawnWith(def, func(string) interaction.Hooks { return hooks })
}

// SpawnWith is Spawn for hooks that need the new instance's ID, such as
// script hooks keyed by instance.
//
// Precondition: newHooks must be non-nil; it is called once, before play begins.
func (h *Host) SpawnWith(def *npc.Definition, newHooks func(instanceID string) interaction.Hooks) (*Instance, error) {
	defID := ""
	prefix := "unassigned"
	if def != nil {
		defID = def.ID
		if def.ID != "" {
			prefix = def.ID
		}
	}
	id := fmt.Sprintf("%s-%s", prefix, uuid.NewString())

	var opts []interaction.Option
	if h.recorder != nil {
		opts = append(opts, interaction.WithRecorder(h.recorder))
	}
	logger := h.logger.With(zap.String("instance", id))
	inst := &Instance{
		ID:           id,
		DefinitionID: defID,
		router:       interaction.NewRouter(id, def, newHooks(id), h.logger, opts...),
		mailbox:      make(chan request, h.mailboxSize),
		done:         make(chan struct{}),
		logger:       logger,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHostClosed
	}
	h.instances[id] = inst
	count := len(h.instances)
	h.mu.Unlock()

	inst.router.Start()
	go inst.run()
	h.report(count)

	logger.Info("npc instance spawned", zap.String("definition", defID))
	return inst, nil
}

// Despawn stops accepting requests for id, runs every request already
// accepted, and releases the instance.
//
// Postcondition: Returns ErrInstanceNotFound if id is unknown.
func (h *Host) Despawn(id string) error {
	h.mu.Lock()
	inst, ok := h.instances[id]
	if ok {
		delete(h.instances, id)
	}
	count := len(h.instances)
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("despawning %q: %w", id, ErrInstanceNotFound)
	}
	inst.stop()
	h.report(count)
	inst.logger.Info("npc instance despawned")
	return nil
}

// Close despawns every instance and rejects further spawns.
func (h *Host) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.instances))
	for id := range h.instances {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		_ = h.Despawn(id)
	}
}

// Get returns the instance with the given ID.
//
// Postcondition: Returns (inst, true) if found, or (nil, false) otherwise.
func (h *Host) Get(id string) (*Instance, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inst, ok := h.instances[id]
	return inst, ok
}

// Instances returns a snapshot of all live instances ordered by ID.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (h *Host) Instances() []*Instance {
	h.mu.RLock()
	out := make([]*Instance, 0, len(h.instances))
	for _, inst := range h.instances {
		out = append(out, inst)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ServerInteract queues the default Interact intent for npcID.
//
// The call returns once the request is accepted; the router runs it later on
// the instance's goroutine. Core outcomes are never reported back.
//
// Postcondition: Returns ErrInstanceNotFound for unknown or despawning
// instances, or ctx.Err() if ctx ends while the mailbox is full.
func (h *Host) ServerInteract(ctx context.Context, npcID string, requester interaction.Requester) error {
	return h.submit(ctx, npcID, request{requester: requester, intent: interaction.IntentInteract, interact: true})
}

// ServerHandleInteraction queues intent for npcID. See ServerInteract.
func (h *Host) ServerHandleInteraction(ctx context.Context, npcID string, requester interaction.Requester, intent tag.Tag) error {
	return h.submit(ctx, npcID, request{requester: requester, intent: intent})
}

func (h *Host) submit(ctx context.Context, npcID string, req request) error {
	inst, ok := h.Get(npcID)
	if !ok {
		return ErrInstanceNotFound
	}
	return inst.enqueue(ctx, req)
}

func (h *Host) report(count int) {
	if h.gauge != nil {
		h.gauge(count)
	}
}
