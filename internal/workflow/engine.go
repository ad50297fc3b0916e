package workflow

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
	"github.com/codeloom/site-builder/agent-gateway/internal/tools"
)

// Verifier runs the project's build and lint step against a snapshot. The
// engine treats its outcome as ground truth for the VERIFYING state.
type Verifier interface {
	Verify(ctx context.Context, snapshot llm.FileSystemSnapshot) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, snapshot llm.FileSystemSnapshot) error

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, snapshot llm.FileSystemSnapshot) error {
	return f(ctx, snapshot)
}

// ImageSearcher resolves the image search tool server-side. Optional: when
// absent the action is recorded and left to the client.
type ImageSearcher interface {
	Search(ctx context.Context, query, orientation string) ([]string, error)
}

// TurnResult reports what one model turn did to the engine.
type TurnResult struct {
	Snapshot   llm.FileSystemSnapshot
	State      State
	RetryCount int
	// Retries counts only the verification failures recorded by this turn;
	// RetryCount carries the task's running total.
	Retries    int
	Applied    int
	Images     []string
	Violations []ProtocolViolation
}

// Engine is the purely reactive sequencer behind one agent session. It
// never decides what the model should do next; it records, orders and
// applies the stream of action calls, one task at a time. All methods are
// safe for concurrent use: a second request arriving while a turn is being
// applied queues behind the mutex, so two turns never interleave their
// snapshot mutations.
type Engine struct {
	mu       sync.Mutex
	registry *tools.Registry
	verifier Verifier
	images   ImageSearcher
	tracer   trace.Tracer

	state      State
	task       *AITask
	retryCount int
	verified   bool
	violations []ProtocolViolation

	subscribers map[int]chan Event
	nextSub     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithImageSearcher enables server-side execution of the image search tool.
func WithImageSearcher(s ImageSearcher) Option {
	return func(e *Engine) { e.images = s }
}

// NewEngine builds an engine over the given registry and verifier.
func NewEngine(registry *tools.Registry, verifier Verifier, opts ...Option) *Engine {
	e := &Engine{
		registry:    registry,
		verifier:    verifier,
		tracer:      otel.Tracer("workflow-engine"),
		state:       StateAwaitingPlan,
		subscribers: make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current sequencing state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RetryCount exposes the number of verification failures in the current
// task. The engine enforces no ceiling; bounding retries is the calling
// model's responsibility.
func (e *Engine) RetryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retryCount
}

// Task returns the currently open task, or nil.
func (e *Engine) Task() *AITask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task
}

// Violations returns all protocol violations recorded for the current task.
func (e *Engine) Violations() []ProtocolViolation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ProtocolViolation, len(e.violations))
	copy(out, e.violations)
	return out
}

// Subscribe registers an event channel for the websocket stream. The
// returned cancel func must be called when the subscriber goes away.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Event, 64)
	e.subscribers[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(sub)
		}
	}
}

// ApplyTurn sequences one model turn: it applies every action call in
// emission order against the request's snapshot, updating task state as it
// goes. An action naming an unregistered tool halts processing of the rest
// of the turn and is returned as a *tools.UnknownToolError; effects already
// applied stay applied. Application is all-or-nothing per action call, never
// per turn.
func (e *Engine) ApplyTurn(ctx context.Context, snapshot llm.FileSystemSnapshot, resp llm.CanonicalResponse) (TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "workflow.apply_turn")
	defer span.End()
	span.SetAttributes(attribute.Int("turn.actions", len(resp.Actions)))

	if snapshot == nil {
		snapshot = llm.FileSystemSnapshot{}
	}

	// A fresh user request after a closed task opens a new one.
	if e.task == nil || e.task.Status == TaskCompleted || e.task.Status == TaskFailed {
		e.openTask(describeTurn(resp))
	}

	if resp.Text != "" {
		e.record(ActionThinking, truncate(resp.Text, 120))
	}

	result := TurnResult{Snapshot: snapshot}
	violationsBefore := len(e.violations)
	retriesBefore := e.retryCount

	// chat closes the task into CHATTING only when it is the sole kind of
	// action in the turn; a turn that also plans or mutates stays a task.
	chatOnly := true
	for _, call := range resp.Actions {
		if call.Name != tools.Chat {
			chatOnly = false
			break
		}
	}

	finish := func() {
		result.State = e.state
		result.RetryCount = e.retryCount
		result.Retries = e.retryCount - retriesBefore
		result.Violations = e.violations[violationsBefore:]
	}

	for _, call := range resp.Actions {
		if _, err := e.registry.Lookup(call.Name); err != nil {
			span.RecordError(err)
			log.Printf(`{"level":"warn","message":"Unknown tool halted turn","tool":"%s","task_id":"%s"}`,
				call.Name, e.task.ID)
			finish()
			return result, err
		}
		if err := e.applyAction(ctx, snapshot, call, chatOnly, &result); err != nil {
			finish()
			return result, err
		}
		result.Applied++
	}

	finish()
	return result, nil
}

// applyAction dispatches one validated action call. Argument validation
// happens before any mutation so a single call never half-applies.
func (e *Engine) applyAction(ctx context.Context, snapshot llm.FileSystemSnapshot, call llm.ActionCall, chatOnly bool, result *TurnResult) error {
	switch call.Name {
	case tools.PlanSteps:
		steps, err := stringSliceArg(call.Args, "steps")
		if err != nil {
			return err
		}
		e.record(ActionPlanGenerate, fmt.Sprintf("%d steps", len(steps)))
		for _, step := range steps {
			e.record(ActionPlanning, step)
		}
		e.transition(StatePlanning)

	case tools.ListFiles:
		e.record(ActionRead, fmt.Sprintf("%d files", len(snapshot)))

	case tools.ReadFile:
		path, err := stringArg(call.Args, "path")
		if err != nil {
			return err
		}
		e.record(ActionRead, path)

	case tools.CreateOrUpdateFiles:
		files, err := stringMapArg(call.Args, "files")
		if err != nil {
			return err
		}
		e.flagUnplannedMutation(call.Name)
		// Deterministic application order within the one call.
		paths := make([]string, 0, len(files))
		for path := range files {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			if _, exists := snapshot[path]; exists {
				e.record(ActionEdit, path)
			} else {
				e.record(ActionWrite, path)
			}
			snapshot[path] = files[path]
		}
		e.transition(StateExecuting)

	case tools.DeleteFile:
		path, err := stringArg(call.Args, "path")
		if err != nil {
			return err
		}
		e.flagUnplannedMutation(call.Name)
		delete(snapshot, path)
		e.record(ActionCommand, "delete "+path)
		e.transition(StateExecuting)

	case tools.RunBuildAndLint:
		e.record(ActionBuild, "")
		e.transition(StateVerifying)
		if err := e.verifier.Verify(ctx, snapshot); err != nil {
			e.retryCount++
			e.verified = false
			e.record(ActionFixing, truncate(err.Error(), 120))
			e.transition(StateExecuting)
			log.Printf(`{"level":"info","message":"Verification failed","task_id":"%s","retries":%d,"error":"%v"}`,
				e.task.ID, e.retryCount, err)
		} else {
			e.verified = true
			e.record(ActionValidating, "build and lint passed")
		}

	case tools.FinishTask:
		summary, err := stringArg(call.Args, "summary")
		if err != nil {
			return err
		}
		if !e.verified {
			e.violate(call.Name, "finish_task without a successful run_build_and_lint in this task")
		}
		e.record(ActionComplete, truncate(summary, 120))
		e.closeTask(TaskCompleted)
		e.transition(StateDone)

	case tools.Chat:
		response, err := stringArg(call.Args, "response")
		if err != nil {
			return err
		}
		e.record(ActionComplete, truncate(response, 120))
		if e.state == StateAwaitingPlan && chatOnly {
			e.closeTask(TaskCompleted)
			e.transition(StateChatting)
		}

	case tools.SearchPexels:
		query, err := stringArg(call.Args, "query")
		if err != nil {
			return err
		}
		orientation, _ := call.Args["orientation"].(string)
		e.record(ActionSearch, query)
		if e.images != nil {
			urls, err := e.images.Search(ctx, query, orientation)
			if err != nil {
				log.Printf(`{"level":"warn","message":"Image search failed","query":"%s","error":"%v"}`, query, err)
			} else {
				result.Images = append(result.Images, urls...)
				e.publish(Event{
					Type:   EventActionApplied,
					TaskID: e.task.ID,
					Action: &AIAction{Type: ActionSearch, Target: query, Timestamp: time.Now().UTC()},
					Images: urls,
					Time:   time.Now().UTC(),
				})
			}
		}
	}
	return nil
}

// Fail closes the current task as failed after an unrecoverable error.
func (e *Engine) Fail(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task == nil || e.task.Status == TaskCompleted || e.task.Status == TaskFailed {
		return
	}
	e.record(ActionTaskFail, truncate(reason, 120))
	e.closeTask(TaskFailed)
	e.transition(StateDone)
}

func (e *Engine) openTask(description string) {
	e.task = newTask(description)
	e.task.Status = TaskInProgress
	e.state = StateAwaitingPlan
	e.retryCount = 0
	e.verified = false
	e.violations = nil
	e.record(ActionTaskStart, description)
	e.publish(Event{Type: EventTaskOpened, TaskID: e.task.ID, State: e.state, Time: time.Now().UTC()})
}

func (e *Engine) closeTask(status TaskStatus) {
	// Status transitions are monotonic; a closed task never reopens.
	if e.task.Status == TaskCompleted || e.task.Status == TaskFailed {
		return
	}
	e.task.Status = status
	if status == TaskCompleted {
		e.record(ActionTaskComplete, "")
	}
	e.publish(Event{Type: EventTaskClosed, TaskID: e.task.ID, State: e.state, Time: time.Now().UTC()})
}

func (e *Engine) transition(next State) {
	if e.state == next {
		return
	}
	e.state = next
	e.publish(Event{Type: EventStateChanged, TaskID: e.task.ID, State: next, Time: time.Now().UTC()})
}

func (e *Engine) record(actionType ActionType, target string) {
	action := AIAction{Type: actionType, Target: target, Timestamp: time.Now().UTC()}
	e.task.Actions = append(e.task.Actions, action)
	e.publish(Event{Type: EventActionApplied, TaskID: e.task.ID, Action: &action, Time: action.Timestamp})
}

func (e *Engine) violate(tool, reason string) {
	v := ProtocolViolation{TaskID: e.task.ID, Tool: tool, Reason: reason, Time: time.Now().UTC()}
	e.violations = append(e.violations, v)
	log.Printf(`{"level":"warn","message":"Protocol violation","task_id":"%s","tool":"%s","reason":"%s"}`,
		v.TaskID, v.Tool, v.Reason)
	e.publish(Event{Type: EventViolation, TaskID: e.task.ID, Violation: &v, Time: v.Time})
}

// flagUnplannedMutation flags the first code-mutating action of a task that
// was never preceded by plan_steps. Flagged, not blocked.
func (e *Engine) flagUnplannedMutation(tool string) {
	if e.state == StateAwaitingPlan {
		e.violate(tool, "file mutation before plan_steps in this task")
	}
}

func (e *Engine) publish(event Event) {
	for _, ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop rather than stall sequencing.
		}
	}
}

func describeTurn(resp llm.CanonicalResponse) string {
	if len(resp.Actions) > 0 {
		return resp.Actions[0].Name
	}
	return truncate(resp.Text, 80)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// Never cut through a multi-byte rune.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Argument extraction helpers. Each validates fully before the caller
// mutates anything, keeping per-action application atomic.

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing required argument %q", key)
	}
	raw, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]string); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("argument %q must be an array of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be an array of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMapArg(args map[string]any, key string) (map[string]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing required argument %q", key)
	}
	raw, ok := v.(map[string]any)
	if !ok {
		if typed, ok := v.(map[string]string); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("argument %q must be a map of strings", key)
	}
	out := make(map[string]string, len(raw))
	for k, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a map of strings", key)
		}
		out[k] = s
	}
	return out, nil
}
