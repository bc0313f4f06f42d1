package gameserver_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/npcintent/internal/game/interaction"
	"github.com/cory-johannsen/npcintent/internal/game/npc"
	"github.com/cory-johannsen/npcintent/internal/game/tag"
	"github.com/cory-johannsen/npcintent/internal/gameserver"
)

// event is one hook notification.
type event struct {
	hook      string
	requester string
}

// syncHooks records notifications from the owner goroutine.
type syncHooks struct {
	mu      sync.Mutex
	events  []event
	entered chan struct{}
	block   chan struct{}
}

func (h *syncHooks) add(name string, r interaction.Requester) {
	if h.block != nil {
		h.entered <- struct{}{}
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event{hook: name, requester: r.RequesterID()})
}

func (h *syncHooks) snapshot() []event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]event(nil), h.events...)
}

func (h *syncHooks) OnInteract(r interaction.Requester)    { h.add("interact", r) }
func (h *syncHooks) OnTalk(r interaction.Requester)        { h.add("talk", r) }
func (h *syncHooks) OnObserve(r interaction.Requester)     { h.add("observe", r) }
func (h *syncHooks) OnRequestHelp(r interaction.Requester) { h.add("request_help", r) }
func (h *syncHooks) OnReceiveItem(r interaction.Requester) { h.add("receive_item", r) }

// outcomeRecorder counts router outcomes across goroutines.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []interaction.Outcome
}

func (r *outcomeRecorder) RecordInteraction(_ tag.Tag, o interaction.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *outcomeRecorder) count(o interaction.Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.outcomes {
		if got == o {
			n++
		}
	}
	return n
}

func bobDefinition(allowed ...tag.Tag) *npc.Definition {
	return &npc.Definition{
		ID:                        "npc_bob",
		DisplayName:               "Bob",
		ShortDescription:          "desc",
		NarrativeRole:             "NPC.Role.Merchant",
		CapabilityTags:            tag.NewSet("NPC.Capability.Trade"),
		AllowedInteractionIntents: tag.NewSet(allowed...),
	}
}

func TestHost_SpawnDispatchDespawn(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host := gameserver.NewHost(zap.NewNop())
	hooks := &syncHooks{}
	inst, err := host.Spawn(bobDefinition(interaction.IntentTalk, interaction.IntentInteract), hooks)
	require.NoError(t, err)
	assert.Equal(t, "npc_bob", inst.DefinitionID)
	assert.True(t, inst.Router().HasCapability("NPC.Capability.Trade"))

	ctx := context.Background()
	require.NoError(t, host.ServerHandleInteraction(ctx, inst.ID, interaction.PlayerRef("alice"), interaction.IntentTalk))
	require.NoError(t, host.ServerInteract(ctx, inst.ID, interaction.PlayerRef("bob")))
	require.NoError(t, host.ServerHandleInteraction(ctx, inst.ID, interaction.PlayerRef("alice"), interaction.IntentObserve))

	require.NoError(t, host.Despawn(inst.ID))
	assert.Equal(t, []event{{"talk", "alice"}, {"interact", "bob"}}, hooks.snapshot())

	_, ok := host.Get(inst.ID)
	assert.False(t, ok)
}

func TestHost_PreservesPerSenderOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host := gameserver.NewHost(zap.NewNop(), gameserver.WithMailboxSize(2))
	hooks := &syncHooks{}
	inst, err := host.Spawn(bobDefinition(interaction.RecognizedIntents()...), hooks)
	require.NoError(t, err)

	seq := []tag.Tag{
		interaction.IntentTalk, interaction.IntentObserve, interaction.IntentRequestHelp,
		interaction.IntentReceiveItem, interaction.IntentInteract, interaction.IntentTalk,
	}
	ctx := context.Background()
	for _, intent := range seq {
		require.NoError(t, host.ServerHandleInteraction(ctx, inst.ID, interaction.PlayerRef("alice"), intent))
	}
	host.Close()

	got := hooks.snapshot()
	require.Len(t, got, len(seq))
	assert.Equal(t, []string{"talk", "observe", "request_help", "receive_item", "interact", "talk"},
		[]string{got[0].hook, got[1].hook, got[2].hook, got[3].hook, got[4].hook, got[5].hook})
}

func TestHost_ConcurrentSenders_AllDelivered(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host := gameserver.NewHost(zap.NewNop(), gameserver.WithMailboxSize(1))
	hooks := &syncHooks{}
	inst, err := host.Spawn(bobDefinition(interaction.IntentTalk), hooks)
	require.NoError(t, err)

	const senders, perSender = 8, 25
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			who := interaction.PlayerRef(fmt.Sprintf("p%d", s))
			for i := 0; i < perSender; i++ {
				assert.NoError(t, host.ServerHandleInteraction(context.Background(), inst.ID, who, interaction.IntentTalk))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, host.Despawn(inst.ID))

	assert.Len(t, hooks.snapshot(), senders*perSender)
}

func TestHost_UnknownInstance(t *testing.T) {
	host := gameserver.NewHost(zap.NewNop())
	err := host.ServerInteract(context.Background(), "npc_ghost", interaction.PlayerRef("alice"))
	assert.True(t, errors.Is(err, gameserver.ErrInstanceNotFound))
	assert.True(t, errors.Is(host.Despawn("npc_ghost"), gameserver.ErrInstanceNotFound))
}

func TestHost_FullMailbox_HonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host := gameserver.NewHost(zap.NewNop(), gameserver.WithMailboxSize(1))
	hooks := &syncHooks{entered: make(chan struct{}, 4), block: make(chan struct{})}
	inst, err := host.Spawn(bobDefinition(interaction.IntentTalk), hooks)
	require.NoError(t, err)

	alice := interaction.PlayerRef("alice")
	// The first request occupies the owner goroutine, the second fills the mailbox.
	require.NoError(t, host.ServerHandleInteraction(context.Background(), inst.ID, alice, interaction.IntentTalk))
	<-hooks.entered
	require.NoError(t, host.ServerHandleInteraction(context.Background(), inst.ID, alice, interaction.IntentTalk))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = host.ServerHandleInteraction(ctx, inst.ID, alice, interaction.IntentTalk)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(hooks.block)
	host.Close()
	assert.Len(t, hooks.snapshot(), 2)
}

func TestHost_NoDefinition_LogsErrorAndDrops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	core, logs := observer.New(zap.DebugLevel)
	host := gameserver.NewHost(zap.New(core))
	hooks := &syncHooks{}
	inst, err := host.Spawn(nil, hooks)
	require.NoError(t, err)
	assert.Equal(t, "", inst.DefinitionID)

	require.NoError(t, host.ServerHandleInteraction(context.Background(), inst.ID, interaction.PlayerRef("alice"), interaction.IntentTalk))
	host.Close()

	assert.Empty(t, hooks.snapshot())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestHost_HookPanic_Recovered(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	core, logs := observer.New(zap.DebugLevel)
	rec := &outcomeRecorder{}
	host := gameserver.NewHost(zap.New(core), gameserver.WithRecorder(rec))
	calls := 0
	hooks := interaction.HookFuncs{
		Talk: func(interaction.Requester) {
			calls++
			if calls == 1 {
				panic("script bug")
			}
		},
	}
	inst, err := host.Spawn(bobDefinition(interaction.IntentTalk), hooks)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, host.ServerHandleInteraction(ctx, inst.ID, interaction.PlayerRef("alice"), interaction.IntentTalk))
	require.NoError(t, host.ServerHandleInteraction(ctx, inst.ID, interaction.PlayerRef("alice"), interaction.IntentTalk))
	host.Close()

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, logs.FilterMessage("interaction hook panicked").Len())
	assert.Equal(t, 2, rec.count(interaction.OutcomeDispatched))
}

func TestHost_CloseRejectsSpawn(t *testing.T) {
	host := gameserver.NewHost(zap.NewNop())
	host.Close()
	_, err := host.Spawn(bobDefinition(), nil)
	assert.ErrorIs(t, err, gameserver.ErrHostClosed)
}

func TestHost_InstancesAndGauge(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	var counts []int
	host := gameserver.NewHost(zap.NewNop(), gameserver.WithInstanceGauge(func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	}))

	a, err := host.Spawn(bobDefinition(), nil)
	require.NoError(t, err)
	other := bobDefinition()
	other.ID = "npc_alice"
	b, err := host.Spawn(other, nil)
	require.NoError(t, err)

	ids := []string{}
	for _, inst := range host.Instances() {
		ids = append(ids, inst.ID)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
	assert.NotEqual(t, a.ID, b.ID)

	host.Close()
	assert.Empty(t, host.Instances())
	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestHost_SpawnWith_ReceivesInstanceID(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host := gameserver.NewHost(zap.NewNop())
	var seen string
	var got []string
	inst, err := host.SpawnWith(bobDefinition(interaction.IntentTalk), func(id string) interaction.Hooks {
		seen = id
		return interaction.HookFuncs{Talk: func(r interaction.Requester) {
			got = append(got, id+":"+r.RequesterID())
		}}
	})
	require.NoError(t, err)
	assert.Equal(t, inst.ID, seen)

	require.NoError(t, host.ServerHandleInteraction(context.Background(), inst.ID, interaction.PlayerRef("alice"), interaction.IntentTalk))
	host.Close()
	assert.Equal(t, []string{inst.ID + ":alice"}, got)
}
