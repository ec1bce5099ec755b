package confirmation

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"mentionguard/core"
	"mentionguard/models"
)

// ApplyFunc runs the approved plan. It is only ever invoked from the Applied transition.
type ApplyFunc func(ctx context.Context, op models.GateOperation) models.BatchResult

// TerminalFunc observes operations that reached Applied, Cancelled or Expired
type TerminalFunc func(op models.GateOperation)

// terminalRetention bounds how long finished operations stay queryable
const terminalRetention = 15 * time.Minute

type messageKind int

const (
	messageApprove messageKind = iota
	messageCancel
)

type message struct {
	kind    messageKind
	actorID string
	reply   chan reply
}

type reply struct {
	op  models.GateOperation
	err error
}

type operation struct {
	view       models.GateOperation
	mailbox    chan message
	done       chan struct{}
	finishedAt time.Time
}

// Gate drives each pending fix operation through two explicit confirmations.
// Every operation is owned by its own goroutine reading a mailbox of approve/cancel
// messages and a timer; the only path to ApplyFunc is the second approval.
type Gate struct {
	initialTimeout time.Duration
	finalTimeout   time.Duration
	apply          ApplyFunc
	onTerminal     TerminalFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	operations map[string]*operation
}

func NewGate(initialTimeout, finalTimeout time.Duration, apply ApplyFunc) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		initialTimeout: initialTimeout,
		finalTimeout:   finalTimeout,
		apply:          apply,
		ctx:            ctx,
		cancel:         cancel,
		operations:     make(map[string]*operation),
	}
}

// OnTerminal registers the callback for terminal transitions. Must be called before Open.
func (g *Gate) OnTerminal(fn TerminalFunc) {
	g.onTerminal = fn
}

// Open registers a new operation for the plan and waits for the actor's first confirmation
func (g *Gate) Open(guildID, actorID string, plan models.Plan) models.GateOperation {
	now := time.Now()
	op := &operation{
		view: models.GateOperation{
			ID:        core.NewID("op"),
			GuildID:   guildID,
			ActorID:   actorID,
			State:     models.GateStateProposed,
			Plan:      plan,
			CreatedAt: now,
		},
		mailbox: make(chan message),
		done:    make(chan struct{}),
	}

	// the proposal is shown to the actor together with the first confirmation prompt
	op.view.State = models.GateStateAwaitingInitialConfirm
	op.view.ExpiresAt = now.Add(g.initialTimeout)

	g.mu.Lock()
	g.pruneLocked(now)
	g.operations[op.view.ID] = op
	view := op.view
	g.mu.Unlock()

	log.Printf("📋 Opened fix confirmation %s for guild %s by actor %s (%d actions)", view.ID, guildID, actorID, len(plan.Actions))

	g.wg.Add(1)
	go g.run(op)
	return view
}

// Approve advances the operation by one confirmation step.
// The second approval applies the plan and returns once the batch finished.
func (g *Gate) Approve(operationID, actorID string) (models.GateOperation, error) {
	return g.send(operationID, messageApprove, actorID)
}

// Cancel terminates the operation without touching the guild
func (g *Gate) Cancel(operationID, actorID string) (models.GateOperation, error) {
	return g.send(operationID, messageCancel, actorID)
}

// Get returns the current view of an operation
func (g *Gate) Get(operationID string) (models.GateOperation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	op, ok := g.operations[operationID]
	if !ok {
		return models.GateOperation{}, fmt.Errorf("operation %s: %w", operationID, core.ErrGateNotFound)
	}
	return op.view, nil
}

// Pending lists the non-terminal operations of a guild, oldest first
func (g *Gate) Pending(guildID string) []models.GateOperation {
	g.mu.Lock()
	defer g.mu.Unlock()

	pending := []models.GateOperation{}
	for _, op := range g.operations {
		if op.view.GuildID == guildID && !op.view.State.IsTerminal() {
			pending = append(pending, op.view)
		}
	}
	slices.SortFunc(pending, func(a, b models.GateOperation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return pending
}

// Close expires every open operation and waits for their goroutines to exit
func (g *Gate) Close() {
	g.cancel()
	g.wg.Wait()
}

func (g *Gate) send(operationID string, kind messageKind, actorID string) (models.GateOperation, error) {
	g.mu.Lock()
	op, ok := g.operations[operationID]
	g.mu.Unlock()
	if !ok {
		return models.GateOperation{}, fmt.Errorf("operation %s: %w", operationID, core.ErrGateNotFound)
	}

	msg := message{kind: kind, actorID: actorID, reply: make(chan reply, 1)}
	select {
	case op.mailbox <- msg:
		r := <-msg.reply
		return r.op, r.err
	case <-op.done:
		view, _ := g.Get(operationID)
		return view, terminalError(view.State)
	}
}

func (g *Gate) run(op *operation) {
	defer g.wg.Done()
	defer close(op.done)

	timer := time.NewTimer(g.initialTimeout)
	defer timer.Stop()

	for {
		select {
		case <-g.ctx.Done():
			g.finish(op, models.GateStateExpired, nil)
			return

		case <-timer.C:
			log.Printf("⚠️ Fix confirmation %s expired in state %s", op.view.ID, g.state(op))
			g.finish(op, models.GateStateExpired, nil)
			return

		case msg := <-op.mailbox:
			if msg.actorID != op.view.ActorID {
				log.Printf("⚠️ Actor %s tried to advance confirmation %s owned by %s", msg.actorID, op.view.ID, op.view.ActorID)
				msg.reply <- reply{op: g.view(op), err: core.ErrUnauthorizedActor}
				continue
			}

			if msg.kind == messageCancel {
				view := g.finish(op, models.GateStateCancelled, nil)
				msg.reply <- reply{op: view}
				return
			}

			current := g.view(op)
			if !time.Now().Before(current.ExpiresAt) {
				view := g.finish(op, models.GateStateExpired, nil)
				msg.reply <- reply{op: view, err: core.ErrGateExpired}
				return
			}

			switch current.State {
			case models.GateStateAwaitingInitialConfirm:
				timer.Reset(g.finalTimeout)
				view := g.transition(op, models.GateStateAwaitingFinalConfirm, time.Now().Add(g.finalTimeout))
				msg.reply <- reply{op: view}

			case models.GateStateAwaitingFinalConfirm:
				timer.Stop()
				view := g.transition(op, models.GateStateApplied, current.ExpiresAt)
				result := g.apply(g.ctx, view)
				view = g.finish(op, models.GateStateApplied, &result)
				msg.reply <- reply{op: view}
				return

			default:
				msg.reply <- reply{op: current, err: core.ErrInvalidTransition}
			}
		}
	}
}

func (g *Gate) transition(op *operation, state models.GateState, expiresAt time.Time) models.GateOperation {
	g.mu.Lock()
	defer g.mu.Unlock()

	op.view.State = state
	op.view.ExpiresAt = expiresAt
	return op.view
}

func (g *Gate) finish(op *operation, state models.GateState, result *models.BatchResult) models.GateOperation {
	g.mu.Lock()
	op.view.State = state
	op.view.Result = result
	op.finishedAt = time.Now()
	view := op.view
	g.mu.Unlock()

	log.Printf("📋 Fix confirmation %s for guild %s finished as %s", view.ID, view.GuildID, view.State)
	if g.onTerminal != nil {
		g.onTerminal(view)
	}
	return view
}

func (g *Gate) state(op *operation) models.GateState {
	return g.view(op).State
}

func (g *Gate) view(op *operation) models.GateOperation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return op.view
}

func (g *Gate) pruneLocked(now time.Time) {
	for id, op := range g.operations {
		if op.view.State.IsTerminal() && now.Sub(op.finishedAt) > terminalRetention {
			delete(g.operations, id)
		}
	}
}

func terminalError(state models.GateState) error {
	switch state {
	case models.GateStateExpired:
		return core.ErrGateExpired
	case models.GateStateCancelled:
		return core.ErrGateCancelled
	default:
		return core.ErrInvalidTransition
	}
}
