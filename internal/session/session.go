package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/apiforge/apiforge/internal/analyzer"
	"github.com/apiforge/apiforge/internal/config"
	"github.com/apiforge/apiforge/internal/events"
	"github.com/apiforge/apiforge/internal/ledger"
	"github.com/apiforge/apiforge/internal/logging"
	"github.com/apiforge/apiforge/internal/merge"
	"github.com/apiforge/apiforge/internal/oracle"
	"github.com/apiforge/apiforge/internal/placement"
)

// State is the session's lifecycle position.
type State string

const (
	StateInitializing State = "initializing"
	StateIterating    State = "iterating"
	StateValidating   State = "validating"
	StateCompleted    State = "completed"
	StateExhausted    State = "exhausted"
	StateFailed       State = "failed"
)

// Generation modes recorded in the task result.
const (
	ModeLoop     = "loop"
	ModeFallback = "fallback"
)

// PathLocker serializes writes per target file path. Two tasks can resolve
// to the same entry-point file under the extend recommendation, so file
// writes go through the locker when one is installed.
type PathLocker interface {
	Lock(path string)
	Unlock(path string)
}

// Recorder is the slice of the ledger the session persists through after
// every round. A nil recorder disables persistence (used in tests).
type Recorder interface {
	SaveSession(ctx context.Context, taskID, sessionID, provider string, roundCount int) error
	AppendTranscript(ctx context.Context, taskID, role, content string) error
	SaveArtifactRecord(ctx context.Context, taskID string, rec ledger.ArtifactRecord) error
}

// Options wires a session's collaborators.
type Options struct {
	TaskID     string
	Descriptor placement.Descriptor
	Placement  *placement.Placement
	Features   analyzer.FrameworkFeatures
	Root       string

	Oracle   oracle.Oracle
	Breaker  *gobreaker.CircuitBreaker
	Retry    config.RetryConfig
	Gen      config.GenerationConfig
	Analyzer analyzer.Analyzer // tool-invocation collaborator, may be nil
	Recorder Recorder          // may be nil
	Bus      *events.Bus       // may be nil
	Locks    PathLocker        // may be nil

	// Invalidate is called with Root after each write pass so cached
	// analyses of the mutated tree are discarded before the next read.
	// May be nil.
	Invalidate func(root string)

	MaxTokens int
}

// Result summarizes a finished session for the task ledger. Unclassified
// carries oracle output that matched no role; it is surfaced for inspection
// rather than silently dropped.
type Result struct {
	State        State
	Mode         string
	Rounds       int
	Produced     map[Role]*Artifact
	Unclassified []*Artifact
	Message      string
}

// Session runs the convergence loop for one generation task. A session is
// single-use and its round loop is strictly sequential: each round's prompt
// depends on the previous round's parse and on-disk validation state.
type Session struct {
	Options

	id            string
	contract      Contract
	produced      map[Role]*Artifact
	transcript    []oracle.Turn
	roundCount    int
	state         State
	system        string
	mergeFailures map[Role]string
	unclassified  []*Artifact
	persisted     int
	log           *logrus.Entry
}

func New(opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		Options:       opts,
		id:            id,
		produced:      make(map[Role]*Artifact),
		mergeFailures: make(map[Role]string),
		state:         StateInitializing,
		log: logging.Logger().WithFields(logrus.Fields{
			"task":    opts.TaskID,
			"session": id,
		}),
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) State() State { return s.state }

// Run executes the session to a terminal state. It never leaves artifacts
// unaccounted for: the returned Result carries everything produced, and the
// ledger has the transcript and per-artifact records as of the last round.
func (s *Session) Run(ctx context.Context) *Result {
	s.contract = ContractFor(s.Descriptor)
	s.system = systemPrompt(s.Descriptor, s.Placement, s.Features)

	if !s.Gen.SingleShot {
		if res := s.iterate(ctx); res != nil {
			return res
		}
	}

	// Loop exhausted or skipped. The fallback chain runs inside the same
	// task attempt.
	if !s.Gen.EnableFallback && !s.Gen.SingleShot {
		s.state = StateExhausted
		return s.result("round budget exhausted")
	}
	return s.fallback(ctx)
}

// iterate runs the full convergence loop. It returns a terminal Result on
// completion or unrecoverable failure, or nil when the budget ran out and
// the fallback chain should take over.
func (s *Session) iterate(ctx context.Context) *Result {
	maxRounds := s.Gen.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	for s.roundCount < maxRounds {
		s.roundCount++
		s.state = StateIterating

		prompt := s.roundPrompt()
		reply, err := s.complete(ctx, prompt)
		if err != nil {
			if s.Gen.EnableFallback {
				s.log.WithError(err).Warn("oracle unavailable, invoking fallback chain")
				return nil
			}
			s.state = StateFailed
			return s.result(fmt.Sprintf("oracle error: %v", err))
		}

		step := ParseStep(reply)
		if step.Tool != nil {
			s.runTool(ctx, step.Tool)
		}
		s.incorporate(step.Artifacts)

		s.state = StateValidating
		s.writeAndValidate(ctx)
		s.persistRound(ctx)
		s.publishRound()

		if s.contract.Satisfied(s.produced) {
			s.state = StateCompleted
			return s.resultWithMode(ModeLoop, "contract satisfied")
		}
	}

	s.state = StateExhausted
	s.log.WithField("rounds", s.roundCount).Info("round budget exhausted")
	return nil
}

func (s *Session) roundPrompt() string {
	missing := s.contract.Missing(s.produced)
	g := guidance(missing, s.produced)
	if s.roundCount == 1 {
		if g == "" {
			return "Begin."
		}
		return "Begin. " + g
	}
	if g == "" {
		return "Continue."
	}
	return g
}

func (s *Session) complete(ctx context.Context, prompt string) (string, error) {
	s.transcript = append(s.transcript, oracle.Turn{Role: "user", Content: prompt})
	req := oracle.Request{
		System:      s.system,
		Transcript:  s.transcript,
		Temperature: s.Gen.Temperature,
		MaxTokens:   s.MaxTokens,
	}

	reply, err := oracle.CompleteWithRetry(ctx, s.Oracle, req, s.Breaker, s.Retry)
	if err != nil {
		return "", err
	}
	s.transcript = append(s.transcript, oracle.Turn{Role: "assistant", Content: reply})
	return reply, nil
}

// runTool executes an oracle tool invocation against the read-only analysis
// collaborator and appends the observation to the transcript.
func (s *Session) runTool(ctx context.Context, call *ToolCall) {
	if call.Name != "analyze" || s.Analyzer == nil {
		s.observe(fmt.Sprintf("Observation: tool %q is not available.", call.Name))
		return
	}
	analysis, err := s.Analyzer.Analyze(ctx, s.Root, call.Arg)
	if err != nil {
		s.observe(fmt.Sprintf("Observation: analysis failed: %v", err))
		return
	}
	s.observe(formatObservation(analysis))
}

func (s *Session) observe(text string) {
	s.transcript = append(s.transcript, oracle.Turn{Role: "user", Content: text})
}

func formatObservation(a *analyzer.Analysis) string {
	obs := fmt.Sprintf("Observation: %d modules, %d entry points.", len(a.Modules), len(a.EntryPoints))
	for _, ep := range a.EntryPoints {
		obs += fmt.Sprintf(" %s routes=%v;", ep.Name, ep.BaseRoutes)
	}
	return obs
}

// incorporate classifies candidates and folds them into the produced map.
// A candidate for an already-present role is merged member-wise rather than
// replacing the earlier text. Unclassifiable candidates are logged and
// dropped; they never satisfy a contract slot.
func (s *Session) incorporate(candidates []CandidateArtifact) {
	for _, c := range candidates {
		cls := Classify(c)
		if cls.Role == RoleUnknown {
			s.log.WithField("round", s.roundCount).Warn("unclassifiable artifact, keeping for inspection")
			s.unclassified = append(s.unclassified, &Artifact{
				Role:       RoleUnknown,
				SourceText: c.SourceText,
				TargetPath: c.DeclaredPath,
				Round:      s.roundCount,
			})
			continue
		}

		existing, ok := s.produced[cls.Role]
		if !ok {
			s.produced[cls.Role] = &Artifact{
				Role:       cls.Role,
				SourceText: c.SourceText,
				TargetPath: targetPathFor(cls.Role, s.Placement, s.Descriptor),
				Round:      s.roundCount,
			}
			continue
		}

		merged, err := merge.Merge(existing.SourceText, c.SourceText)
		if err != nil {
			s.mergeFailures[cls.Role] = err.Error()
			s.log.WithError(err).WithField("role", cls.Role).Warn("unmergeable unit")
			continue
		}
		delete(s.mergeFailures, cls.Role)
		existing.SourceText = merged
		existing.Round = s.roundCount
		existing.Valid = false
	}
}

// writeAndValidate flushes every produced artifact to disk and re-checks it
// there. Validation strictly follows the write; the next round's prompt
// strictly follows validation.
func (s *Session) writeAndValidate(ctx context.Context) {
	for role, a := range s.produced {
		if msg, failed := s.mergeFailures[role]; failed {
			a.Valid = false
			s.publishValidation(a, fmt.Errorf("%s", msg))
			s.recordArtifact(ctx, a)
			continue
		}

		err := s.writeArtifact(a)
		if err == nil {
			err = validateArtifact(a)
		}
		a.Valid = err == nil
		if err != nil {
			s.log.WithError(err).WithField("role", role).Warn("artifact validation failed")
		}
		s.publishValidation(a, err)
		s.recordArtifact(ctx, a)
	}

	for _, a := range s.unclassified {
		if a.Round == s.roundCount {
			s.recordArtifact(ctx, a)
		}
	}

	if s.Invalidate != nil && len(s.produced) > 0 {
		s.Invalidate(s.Root)
	}
}

// writeArtifact persists one artifact. A file that already exists is merged
// in place so generation never clobbers hand-written members; a merge
// conflict surfaces as a validation failure, not silent corruption.
func (s *Session) writeArtifact(a *Artifact) error {
	if s.Locks != nil {
		s.Locks.Lock(a.TargetPath)
		defer s.Locks.Unlock(a.TargetPath)
	}

	out := a.SourceText
	if existing, err := os.ReadFile(a.TargetPath); err == nil && len(existing) > 0 && a.Role != RoleMapperXML {
		merged, mergeErr := merge.Merge(string(existing), a.SourceText)
		if mergeErr != nil {
			if errors.Is(mergeErr, merge.ErrNoClosingBrace) {
				return fmt.Errorf("unmergeable unit %s: %w", a.TargetPath, mergeErr)
			}
			return mergeErr
		}
		out = merged
	}

	if err := os.MkdirAll(filepath.Dir(a.TargetPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(a.TargetPath, []byte(out), 0o644)
}

func (s *Session) persistRound(ctx context.Context) {
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.SaveSession(ctx, s.TaskID, s.id, s.Gen.Provider, s.roundCount); err != nil {
		s.log.WithError(err).Warn("persist session state failed")
	}
	// Persist only the turns added since the previous round.
	for _, turn := range s.transcript[s.persisted:] {
		if err := s.Recorder.AppendTranscript(ctx, s.TaskID, turn.Role, turn.Content); err != nil {
			s.log.WithError(err).Warn("persist transcript failed")
			break
		}
		s.persisted++
	}
}

func (s *Session) recordArtifact(ctx context.Context, a *Artifact) {
	if s.Recorder == nil {
		return
	}
	rec := ledger.ArtifactRecord{
		Role:       string(a.Role),
		TargetPath: a.TargetPath,
		Round:      a.Round,
		Valid:      a.Valid,
	}
	if err := s.Recorder.SaveArtifactRecord(ctx, s.TaskID, rec); err != nil {
		s.log.WithError(err).Warn("persist artifact record failed")
	}
}

func (s *Session) publishRound() {
	if s.Bus == nil {
		return
	}
	missing := s.contract.Missing(s.produced)
	names := make([]string, len(missing))
	for i, r := range missing {
		names[i] = string(r)
	}
	s.Bus.Publish(events.TopicSession, events.SessionRoundEvent{
		ID:           s.TaskID,
		Round:        s.roundCount,
		MissingRoles: names,
		Timestamp:    time.Now(),
	})
}

func (s *Session) publishValidation(a *Artifact, err error) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(events.TopicSession, events.ArtifactValidatedEvent{
		ID:        s.TaskID,
		Role:      string(a.Role),
		Path:      a.TargetPath,
		Valid:     err == nil,
		Timestamp: time.Now(),
	})
}

func (s *Session) result(message string) *Result {
	return s.resultWithMode(ModeLoop, message)
}

func (s *Session) resultWithMode(mode, message string) *Result {
	return &Result{
		State:        s.state,
		Mode:         mode,
		Rounds:       s.roundCount,
		Produced:     s.produced,
		Unclassified: s.unclassified,
		Message:      message,
	}
}
