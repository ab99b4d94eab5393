package session

import "context"

// fallback runs the degraded generation chain: one single-shot oracle call
// asking for every missing role at once, then deterministic placeholder
// templates for whatever is still missing. The placeholder rung guarantees
// forward progress even with zero oracle availability.
func (s *Session) fallback(ctx context.Context) *Result {
	missing := s.contract.Missing(s.produced)
	if len(missing) == 0 {
		s.state = StateCompleted
		return s.resultWithMode(ModeLoop, "contract satisfied")
	}

	reply, err := s.complete(ctx, singleShotPrompt(missing))
	if err != nil {
		s.log.WithError(err).Warn("single-shot generation failed, falling back to placeholders")
	} else {
		step := ParseStep(reply)
		s.incorporate(step.Artifacts)
		s.state = StateValidating
		s.writeAndValidate(ctx)
		s.persistRound(ctx)
		if s.contract.Satisfied(s.produced) {
			s.state = StateCompleted
			return s.resultWithMode(ModeFallback, "single-shot generation")
		}
	}

	for _, role := range s.contract.Missing(s.produced) {
		delete(s.mergeFailures, role)
		s.produced[role] = &Artifact{
			Role:       role,
			SourceText: placeholderFor(role, s.Placement.Keyword, s.Descriptor),
			TargetPath: targetPathFor(role, s.Placement, s.Descriptor),
			Round:      s.roundCount,
		}
	}
	s.state = StateValidating
	s.writeAndValidate(ctx)
	s.persistRound(ctx)

	if s.contract.Satisfied(s.produced) {
		s.state = StateCompleted
		return s.resultWithMode(ModeFallback, "placeholder templates")
	}
	s.state = StateFailed
	return s.resultWithMode(ModeFallback, "placeholder generation failed")
}
