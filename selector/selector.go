// Package selector implements the pure algorithm-selection rules of
// spec.md §4.2: a context plus a config maps onto one AlgorithmID and a
// reason code, with a degradation override consulting live health signals.
package selector

import (
	"github.com/bapt252/supersmartmatch/types"
)

// Reason is a small enum of selection reason codes used for logs and the
// selection audit trail.
type Reason string

const (
	ReasonManual                    Reason = "manual"
	ReasonCompleteData               Reason = "complete_data"
	ReasonGeoCritical                Reason = "geo_critical"
	ReasonSeniorNoQuestionnaire       Reason = "senior_no_questionnaire"
	ReasonHighSkills                  Reason = "high_skills"
	ReasonValidationRequired          Reason = "validation_required"
	ReasonDefault                     Reason = "default"
	ReasonFallbackAfterCircuitOpen    Reason = "fallback_after_circuit_open"
	ReasonFallbackAfterDegradation    Reason = "fallback_after_degradation"
)

// HealthView is the subset of live performance/circuit signals the
// selector consults for its degradation override. Implemented by the
// resilience manager and the performance monitor; kept as a narrow
// interface here to avoid a package-level dependency cycle.
type HealthView interface {
	// P95Millis returns the algorithm's recent p95 latency in
	// milliseconds, or -1 if no data is available yet.
	P95Millis(algo types.AlgorithmID) float64
	// SuccessRate returns the algorithm's recent success rate in [0,1],
	// or -1 if no data is available yet.
	SuccessRate(algo types.AlgorithmID) float64
	// CircuitOpen reports whether the algorithm's circuit breaker is
	// currently rejecting calls.
	CircuitOpen(algo types.AlgorithmID) bool
}

// Thresholds configures the degradation override.
type Thresholds struct {
	MaxResponseTimeMs int
	MinSuccessRate    float64
}

// FallbackChain maps a primary algorithm to its ordered substitutes,
// matching spec.md §4.6 (shared with the fallback manager so the
// degradation override and the fallback manager never disagree).
var FallbackChain = map[types.AlgorithmID][]types.AlgorithmID{
	types.AlgorithmNexten:   {types.AlgorithmEnhanced, types.AlgorithmSmart, types.AlgorithmSemantic},
	types.AlgorithmEnhanced: {types.AlgorithmSmart, types.AlgorithmSemantic, types.AlgorithmNexten},
	types.AlgorithmSmart:    {types.AlgorithmSemantic, types.AlgorithmEnhanced, types.AlgorithmNexten},
	types.AlgorithmSemantic: {types.AlgorithmEnhanced, types.AlgorithmSmart, types.AlgorithmNexten},
	types.AlgorithmHybrid:   {types.AlgorithmNexten, types.AlgorithmEnhanced, types.AlgorithmSmart},
}

// RuleTrace records one rule evaluated during selection, for the
// selection audit trail (SPEC_FULL.md supplemented feature).
type RuleTrace struct {
	Rule    string `json:"rule"`
	Matched bool   `json:"matched"`
}

// Decision is the full result of a Select call, including the audit trail.
type Decision struct {
	Algorithm      types.AlgorithmID
	Reason         Reason
	Degraded       bool
	RulesEvaluated []RuleTrace
}

// Select chooses an algorithm for ctx under cfg, consulting health for the
// degradation override. health may be nil, in which case the override is
// skipped (useful for pure unit tests of the base rules).
func Select(ctx types.Context, algorithmHint types.AlgorithmID, health HealthView, th Thresholds) Decision {
	var trace []RuleTrace

	if algorithmHint != "" && algorithmHint != types.AlgorithmAuto {
		return Decision{Algorithm: algorithmHint, Reason: ReasonManual, RulesEvaluated: trace}
	}

	algo, reason := baseSelect(ctx, &trace)

	if health == nil {
		return Decision{Algorithm: algo, Reason: reason, RulesEvaluated: trace}
	}

	// Open circuits are deliberately NOT a trigger here: routing around a
	// circuit that is already open is the Fallback Manager's job (it walks
	// the same FallbackChain and skips open circuits on its own), so the
	// algorithm returned below is always the one the base rules chose, and
	// any circuit-open rerouting downstream is correctly observable as a
	// fallback (is_fallback=true) rather than a silent selector swap.
	if needsDegradation(algo, health, th) {
		for _, candidate := range FallbackChain[algo] {
			if !health.CircuitOpen(candidate) && !needsDegradation(candidate, health, th) {
				return Decision{
					Algorithm:      candidate,
					Reason:         ReasonFallbackAfterDegradation,
					Degraded:       true,
					RulesEvaluated: trace,
				}
			}
		}
		// No eligible fallback; return the original selection flagged degraded.
		return Decision{Algorithm: algo, Reason: reason, Degraded: true, RulesEvaluated: trace}
	}

	return Decision{Algorithm: algo, Reason: reason, RulesEvaluated: trace}
}

func baseSelect(ctx types.Context, trace *[]RuleTrace) (types.AlgorithmID, Reason) {
	record := func(rule string, matched bool) {
		*trace = append(*trace, RuleTrace{Rule: rule, Matched: matched})
	}

	nextenMatch := ctx.QuestionnaireCounted && ctx.CompanyQuestionnairesCounted && ctx.DataCompleteness > 0.7 && ctx.SkillsCount >= 5
	record("nexten_complete_data", nextenMatch)
	if nextenMatch {
		return types.AlgorithmNexten, ReasonCompleteData
	}

	smartMatch := ctx.GeoCritical ||
		ctx.MobilityType == types.MobilityRemote || ctx.MobilityType == types.MobilityHybrid || ctx.MobilityType == types.MobilityFlexible ||
		(ctx.MaxCommuteKm != nil && *ctx.MaxCommuteKm < 25) ||
		!ctx.RelocationPossible
	record("smart_geo_critical", smartMatch)
	if smartMatch {
		return types.AlgorithmSmart, ReasonGeoCritical
	}

	enhancedMatch := ctx.ExperienceYears >= 7 && !ctx.QuestionnaireCounted && ctx.CVCompleteness > 0.6 &&
		(ctx.SeniorityLevel == types.SenioritySenior || ctx.SeniorityLevel == types.SeniorityExpert)
	record("enhanced_senior_no_questionnaire", enhancedMatch)
	if enhancedMatch {
		return types.AlgorithmEnhanced, ReasonSeniorNoQuestionnaire
	}

	semanticMatch := ctx.AnalysisType == types.AnalysisSemanticPure || ctx.SkillsCount >= 20 ||
		((ctx.SeniorityLevel == types.SenioritySenior || ctx.SeniorityLevel == types.SeniorityExpert) && ctx.CVCompleteness > 0.8 && !ctx.QuestionnaireCounted)
	record("semantic_high_skills", semanticMatch)
	if semanticMatch {
		return types.AlgorithmSemantic, ReasonHighSkills
	}

	hybridMatch := ctx.RequiresValidation || ctx.ComplexityScore > 0.9 ||
		(ctx.SeniorityLevel == types.SeniorityExpert && ctx.DataCompleteness > 0.4 && ctx.DataCompleteness < 0.8) ||
		(!ctx.PerformanceMode && ctx.ComplexityScore > 0.7)
	record("hybrid_validation_required", hybridMatch)
	if hybridMatch {
		return types.AlgorithmHybrid, ReasonValidationRequired
	}

	record("default_nexten", true)
	return types.AlgorithmNexten, ReasonDefault
}

// needsDegradation reports whether algo's recent performance (not its
// circuit state — that is the Fallback Manager's concern, see Select)
// warrants proactively routing around it.
func needsDegradation(algo types.AlgorithmID, health HealthView, th Thresholds) bool {
	if th.MaxResponseTimeMs > 0 {
		if p95 := health.P95Millis(algo); p95 >= 0 && p95 > float64(th.MaxResponseTimeMs) {
			return true
		}
	}
	if th.MinSuccessRate > 0 {
		if rate := health.SuccessRate(algo); rate >= 0 && rate < th.MinSuccessRate {
			return true
		}
	}
	return false
}
