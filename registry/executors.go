package registry

import (
	"context"
	"strings"

	"github.com/bapt252/supersmartmatch/adapter"
	"github.com/bapt252/supersmartmatch/types"
)

// The five executors below are self-contained heuristic scorers, not a
// reimplementation of any particular production algorithm's internals —
// the scoring formula itself is explicitly out of scope (spec.md §1); what
// matters to the orchestration core is that each behaves like a
// potentially-blocking, occasionally-failing opaque Executor.

// NextenExecutor favors candidates whose CV and questionnaire both map
// tightly onto an offer's stated requirements and company questionnaire.
type NextenExecutor struct{}

func (NextenExecutor) Name() types.AlgorithmID { return types.AlgorithmNexten }

func (NextenExecutor) Execute(ctx context.Context, candidatePayload, offersPayload interface{}, config map[string]interface{}) ([]adapter.NativeResult, error) {
	cand, ok := candidatePayload.(adapter.NativeCandidate)
	if !ok {
		return nil, errBadPayload("nexten", "candidate")
	}
	offers, ok := offersPayload.([]adapter.NativeOffer)
	if !ok {
		return nil, errBadPayload("nexten", "offers")
	}

	candSkills := skillNamesFromInterface(cand.CV["skills"])
	questionnaireBonus := 0.0
	if len(cand.Questionnaire) > 0 {
		questionnaireBonus = 0.1
	}

	results := make([]adapter.NativeResult, 0, len(offers))
	for _, o := range offers {
		requiredSkills := skillNamesFromRequirements(o.Requirements)
		matched, missing := intersect(candSkills, requiredSkills)

		skillScore := ratio(len(matched), len(requiredSkills))
		companyBonus := 0.0
		if len(o.Questionnaire) >= 5 {
			companyBonus = 0.05
		}

		score := clamp01(skillScore*0.7 + questionnaireBonus + companyBonus)
		results = append(results, adapter.NativeResult{
			OfferID: offerID(o.JobInfo),
			Score:   score,
			CategoryScores: map[string]float64{
				"skills":        skillScore,
				"experience":    skillScore,
				"location":      0.7,
				"culture":       0.6,
				"questionnaire": questionnaireBonus * 10,
			},
			MatchedSkills: matched,
			MissingSkills: missing,
		})

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// SmartExecutor weighs location and mobility fit most heavily.
type SmartExecutor struct{}

func (SmartExecutor) Name() types.AlgorithmID { return types.AlgorithmSmart }

func (SmartExecutor) Execute(ctx context.Context, candidatePayload, offersPayload interface{}, config map[string]interface{}) ([]adapter.NativeResult, error) {
	cand, ok := candidatePayload.(adapter.GenericCandidate)
	if !ok {
		return nil, errBadPayload("smart", "candidate")
	}
	offers, ok := offersPayload.([]adapter.GenericOffer)
	if !ok {
		return nil, errBadPayload("smart", "offers")
	}

	candSkills := skillNames(cand.Skills)

	results := make([]adapter.NativeResult, 0, len(offers))
	for _, o := range offers {
		matched, missing := intersect(candSkills, skillNames(o.RequiredSkills))
		skillScore := ratio(len(matched), len(o.RequiredSkills))

		locationScore := 0.9
		if o.RemotePolicy == types.RemoteOffice && cand.Mobility == types.MobilityLocal {
			locationScore = 0.5
		}
		if o.RemotePolicy == types.RemoteFull {
			locationScore = 1.0
		}

		score := clamp01(skillScore*0.4 + locationScore*0.6)
		results = append(results, adapter.NativeResult{
			OfferID: o.ID,
			Score:   score,
			CategoryScores: map[string]float64{
				"skills":     skillScore,
				"experience": skillScore,
				"location":   locationScore,
				"culture":    0.6,
			},
			MatchedSkills: matched,
			MissingSkills: missing,
		})

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// EnhancedExecutor weighs years of relevant experience most heavily.
type EnhancedExecutor struct{}

func (EnhancedExecutor) Name() types.AlgorithmID { return types.AlgorithmEnhanced }

func (EnhancedExecutor) Execute(ctx context.Context, candidatePayload, offersPayload interface{}, config map[string]interface{}) ([]adapter.NativeResult, error) {
	cand, ok := candidatePayload.(adapter.GenericCandidate)
	if !ok {
		return nil, errBadPayload("enhanced", "candidate")
	}
	offers, ok := offersPayload.([]adapter.GenericOffer)
	if !ok {
		return nil, errBadPayload("enhanced", "offers")
	}

	years := 0.0
	for _, e := range cand.Experiences {
		years += float64(e.Months) / 12.0
	}
	candSkills := skillNames(cand.Skills)

	results := make([]adapter.NativeResult, 0, len(offers))
	for _, o := range offers {
		matched, missing := intersect(candSkills, skillNames(o.RequiredSkills))
		skillScore := ratio(len(matched), len(o.RequiredSkills))

		experienceScore := 0.5
		if years >= o.Experience.Min {
			experienceScore = 0.9
			if o.Experience.Max != nil && years > *o.Experience.Max {
				experienceScore = 0.7
			}
		}

		score := clamp01(skillScore*0.35 + experienceScore*0.65)
		results = append(results, adapter.NativeResult{
			OfferID: o.ID,
			Score:   score,
			CategoryScores: map[string]float64{
				"skills":     skillScore,
				"experience": experienceScore,
				"location":   0.6,
				"culture":    0.6,
			},
			MatchedSkills: matched,
			MissingSkills: missing,
		})

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// SemanticExecutor weighs breadth of skill overlap, approximating a
// semantic similarity pass with plain token matching.
type SemanticExecutor struct{}

func (SemanticExecutor) Name() types.AlgorithmID { return types.AlgorithmSemantic }

func (SemanticExecutor) Execute(ctx context.Context, candidatePayload, offersPayload interface{}, config map[string]interface{}) ([]adapter.NativeResult, error) {
	cand, ok := candidatePayload.(adapter.GenericCandidate)
	if !ok {
		return nil, errBadPayload("semantic", "candidate")
	}
	offers, ok := offersPayload.([]adapter.GenericOffer)
	if !ok {
		return nil, errBadPayload("semantic", "offers")
	}

	candSkills := skillNames(cand.Skills)

	results := make([]adapter.NativeResult, 0, len(offers))
	for _, o := range offers {
		allRequired := append(append([]types.Skill{}, o.RequiredSkills...), o.PreferredSkills...)
		matched, missing := intersect(candSkills, skillNames(allRequired))
		skillScore := ratio(len(matched), len(allRequired))

		score := clamp01(skillScore)
		results = append(results, adapter.NativeResult{
			OfferID: o.ID,
			Score:   score,
			CategoryScores: map[string]float64{
				"skills":     skillScore,
				"experience": 0.6,
				"location":   0.6,
				"culture":    0.7,
			},
			MatchedSkills: matched,
			MissingSkills: missing,
		})

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// HybridExecutor blends skill, experience and location signals evenly,
// for cases that require cross-validation against several dimensions.
type HybridExecutor struct{}

func (HybridExecutor) Name() types.AlgorithmID { return types.AlgorithmHybrid }

func (HybridExecutor) Execute(ctx context.Context, candidatePayload, offersPayload interface{}, config map[string]interface{}) ([]adapter.NativeResult, error) {
	cand, ok := candidatePayload.(adapter.GenericCandidate)
	if !ok {
		return nil, errBadPayload("hybrid", "candidate")
	}
	offers, ok := offersPayload.([]adapter.GenericOffer)
	if !ok {
		return nil, errBadPayload("hybrid", "offers")
	}

	years := 0.0
	for _, e := range cand.Experiences {
		years += float64(e.Months) / 12.0
	}
	candSkills := skillNames(cand.Skills)

	results := make([]adapter.NativeResult, 0, len(offers))
	for _, o := range offers {
		matched, missing := intersect(candSkills, skillNames(o.RequiredSkills))
		skillScore := ratio(len(matched), len(o.RequiredSkills))

		experienceScore := 0.5
		if years >= o.Experience.Min {
			experienceScore = 0.85
		}

		locationScore := 0.8
		if o.RemotePolicy == types.RemoteOffice && cand.Mobility == types.MobilityLocal {
			locationScore = 0.5
		}

		score := clamp01((skillScore + experienceScore + locationScore) / 3.0)
		results = append(results, adapter.NativeResult{
			OfferID: o.ID,
			Score:   score,
			CategoryScores: map[string]float64{
				"skills":     skillScore,
				"experience": experienceScore,
				"location":   locationScore,
				"culture":    0.65,
			},
			MatchedSkills: matched,
			MissingSkills: missing,
		})

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// ---- shared helpers ----

func errBadPayload(algo, part string) error {
	return &payloadError{algo: algo, part: part}
}

type payloadError struct {
	algo, part string
}

func (e *payloadError) Error() string {
	return "registry: " + e.algo + " executor received a malformed " + e.part + " payload"
}

func skillNames(skills []types.Skill) map[string]bool {
	out := make(map[string]bool, len(skills))
	for _, s := range skills {
		out[strings.ToLower(s.Name)] = true
	}
	return out
}

func skillNamesFromInterface(v interface{}) map[string]bool {
	skills, ok := v.([]types.Skill)
	if !ok {
		return map[string]bool{}
	}
	return skillNames(skills)
}

func skillNamesFromRequirements(requirements map[string]interface{}) map[string]bool {
	required, ok := requirements["required_skills"].([]types.Skill)
	if !ok {
		return map[string]bool{}
	}
	return skillNames(required)
}

func intersect(have map[string]bool, want map[string]bool) (matched, missing []string) {
	for name := range want {
		if have[name] {
			matched = append(matched, name)
		} else {
			missing = append(missing, name)
		}
	}
	return matched, missing
}

func ratio(matched, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(matched) / float64(total)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func offerID(jobInfo map[string]interface{}) string {
	if id, ok := jobInfo["id"].(string); ok {
		return id
	}
	return ""
}
