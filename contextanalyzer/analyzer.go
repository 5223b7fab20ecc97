// Package contextanalyzer distills a raw matching request into the small
// typed Context record the selector and other downstream stages act on.
package contextanalyzer

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/types"
)

// Weights holds the tunable coefficients the analyzer uses when combining
// sub-scores into data_completeness and complexity_score.
type Weights struct {
	QuestionnaireWeight        float64
	CompanyQuestionnaireWeight float64
	CVCoverageWeight           float64

	CompletenessWeight float64
	ProfileWeight       float64
	GeoWeight           float64
	OfferCountWeight    float64
	MobilityWeight      float64
}

// WeightsFromConfig copies the weighting knobs out of core.Config.
func WeightsFromConfig(cfg core.ContextWeightsConfig) Weights {
	return Weights{
		QuestionnaireWeight:        cfg.QuestionnaireWeight,
		CompanyQuestionnaireWeight: cfg.CompanyQuestionnaireWeight,
		CVCoverageWeight:           cfg.CVCoverageWeight,
		CompletenessWeight:         cfg.CompletenessWeight,
		ProfileWeight:              cfg.ProfileWeight,
		GeoWeight:                  cfg.GeoWeight,
		OfferCountWeight:           cfg.OfferCountWeight,
		MobilityWeight:             cfg.MobilityWeight,
	}
}

// Analyzer turns a Request into a Context. It is pure given its inputs; the
// bounded fingerprint cache is a performance optimization only, never a
// correctness dependency (spec.md §4.1).
type Analyzer struct {
	weights Weights
	logger  core.Logger

	mu       sync.Mutex
	cache    map[string]*list.Element
	order    *list.List
	capacity int
}

type cacheEntry struct {
	key     string
	context types.Context
}

// New builds an Analyzer with the given weights and a bounded LRU cache of
// cacheSize fingerprinted results (0 disables caching).
func New(weights Weights, cacheSize int, logger core.Logger) *Analyzer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Analyzer{
		weights:  weights,
		logger:   logger,
		cache:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: cacheSize,
	}
}

// Analyze derives a Context from a request. An empty offer list is valid
// and yields complexity_score=0; the caller decides what to do with it.
func (a *Analyzer) Analyze(req types.Request) (types.Context, error) {
	if req.Candidate.ID == "" {
		return types.Context{}, core.NewMatchError("contextanalyzer.Analyze", "request", core.ErrInvalidRequest)
	}

	if fp := a.fingerprint(req); fp != "" {
		if ctx, ok := a.lookup(fp); ok {
			return ctx, nil
		}
		ctx := a.compute(req)
		a.store(fp, ctx)
		return ctx, nil
	}

	return a.compute(req), nil
}

func (a *Analyzer) compute(req types.Request) types.Context {
	questionnaireCounted := isQuestionnaireComplete(req.CandidateQuestionnaire)
	companyRatio := companyQuestionnaireRatio(req.Offers)
	companyCounted := companyRatio > 0

	cvCompleteness := cvCompletenessScore(req.Candidate)

	completeness := 0.0
	if questionnaireCounted {
		completeness += a.weights.QuestionnaireWeight
	}
	completeness += companyRatio * a.weights.CompanyQuestionnaireWeight
	completeness += cvCompleteness * a.weights.CVCoverageWeight
	completeness = clamp01(completeness)

	experienceYears := totalExperienceYears(req.Candidate.Experiences)
	seniority := seniorityFor(experienceYears)
	skillsCount := len(req.Candidate.Skills)

	maxCommute := minCommute(req.Offers)
	geoConstrainedRatio := geoConstrainedRatio(req.Offers)
	proximityRatio := proximityRatio(req.Offers, 30)
	relocationPossible := req.Candidate.Mobility != types.MobilityLocal
	remoteAcceptable := req.Candidate.Mobility == types.MobilityRemote || req.Candidate.Mobility == types.MobilityFlexible || req.Candidate.Mobility == types.MobilityHybrid

	geoCritical := geoConstrainedRatio > 0.7 ||
		(maxCommute != nil && *maxCommute < 25) ||
		(!relocationPossible && !remoteAcceptable) ||
		proximityRatio > 0.6

	profileComplexity := clamp01(float64(skillsCount) / 20.0)
	offerSizeComplexity := clamp01(float64(len(req.Offers)) / 20.0)
	mobilityComplexity := mobilityComplexityScore(req.Candidate.Mobility)
	geoComplexity := 0.0
	if geoCritical {
		geoComplexity = 1.0
	}

	complexity := completeness*a.weights.CompletenessWeight +
		profileComplexity*a.weights.ProfileWeight +
		geoComplexity*a.weights.GeoWeight +
		offerSizeComplexity*a.weights.OfferCountWeight +
		mobilityComplexity*a.weights.MobilityWeight
	complexity = clamp01(complexity)
	if len(req.Offers) == 0 {
		complexity = 0
	}

	analysisType := types.AnalysisStandard
	switch {
	case skillsCount >= 20:
		analysisType = types.AnalysisSemanticPure
	case geoCritical:
		analysisType = types.AnalysisGeolocationFocused
	case experienceYears >= 7:
		analysisType = types.AnalysisExperienceWeighted
	case complexity > 0.8:
		analysisType = types.AnalysisHybridValidation
	}

	requiresValidation := complexity > 0.9 || (seniority == types.SeniorityExpert && completeness > 0.4 && completeness < 0.8)

	ctx := types.Context{
		DataCompleteness:             completeness,
		QuestionnaireCounted:         questionnaireCounted,
		CompanyQuestionnairesCounted: companyCounted,
		CVCompleteness:               cvCompleteness,
		SeniorityLevel:               seniority,
		ExperienceYears:              experienceYears,
		MobilityType:                 req.Candidate.Mobility,
		SkillsCount:                  skillsCount,
		GeoCritical:                  geoCritical,
		MaxCommuteKm:                 maxCommute,
		RelocationPossible:           relocationPossible,
		RemoteAcceptable:             remoteAcceptable,
		ComplexityScore:              complexity,
		RequiresValidation:           requiresValidation,
		AnalysisType:                 analysisType,
		OfferCount:                   len(req.Offers),
		PerformanceMode:              req.Config.MaxResults > 0 && req.Config.MaxResults <= 10,
	}

	a.logger.Debug("context analyzed", map[string]interface{}{
		"candidate_id":      req.Candidate.ID,
		"data_completeness": completeness,
		"complexity_score":  complexity,
		"analysis_type":     string(analysisType),
	})

	return ctx
}

// isQuestionnaireComplete applies spec.md §4.1's candidate-questionnaire
// counting rule: completion ratio >0.8 AND >=10 answered items AND
// non-empty answer ratio >0.7.
func isQuestionnaireComplete(q map[string]interface{}) bool {
	if len(q) == 0 {
		return false
	}
	answered := 0
	nonEmpty := 0
	for _, v := range q {
		if v == nil {
			continue
		}
		answered++
		if s, ok := v.(string); ok {
			if s != "" {
				nonEmpty++
			}
			continue
		}
		nonEmpty++
	}
	completionRatio := float64(answered) / float64(len(q))
	if answered < 10 {
		return false
	}
	if completionRatio <= 0.8 {
		return false
	}
	nonEmptyRatio := 0.0
	if answered > 0 {
		nonEmptyRatio = float64(nonEmpty) / float64(answered)
	}
	return nonEmptyRatio > 0.7
}

// companyQuestionnaireRatio returns the share of offers whose company
// questionnaire has >=5 populated fields.
func companyQuestionnaireRatio(offers []types.Offer) float64 {
	if len(offers) == 0 {
		return 0
	}
	counted := 0
	for _, o := range offers {
		if populatedFields(o.CompanyQuestionnaire) >= 5 {
			counted++
		}
	}
	return float64(counted) / float64(len(offers))
}

func populatedFields(m map[string]interface{}) int {
	n := 0
	for _, v := range m {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		n++
	}
	return n
}

// cvCompletenessScore averages presence scores across experience, skills,
// education, certifications, and projects, per spec.md §4.1.
func cvCompletenessScore(c types.Candidate) float64 {
	listScore := func(n int) float64 { return clamp01(float64(n) / 3.0) }

	experience := listScore(len(c.Experiences))
	skills := listScore(len(c.Skills))
	education := listScore(len(c.Education))
	// Certifications and projects are not modeled as first-class candidate
	// fields; treat them as absent (score 0) rather than inventing data.
	certifications := 0.0
	projects := 0.0

	return (experience + skills + education + certifications + projects) / 5.0
}

func totalExperienceYears(exps []types.Experience) float64 {
	total := 0
	for _, e := range exps {
		total += e.Months
	}
	return float64(total) / 12.0
}

func seniorityFor(years float64) types.SeniorityLevel {
	switch {
	case years >= 10:
		return types.SeniorityExpert
	case years >= 5:
		return types.SenioritySenior
	case years >= 2:
		return types.SeniorityMid
	default:
		return types.SeniorityJunior
	}
}

func minCommute(offers []types.Offer) *float64 {
	var min *float64
	for _, o := range offers {
		if o.CommuteKm == nil {
			continue
		}
		if min == nil || *o.CommuteKm < *min {
			v := *o.CommuteKm
			min = &v
		}
	}
	return min
}

func geoConstrainedRatio(offers []types.Offer) float64 {
	if len(offers) == 0 {
		return 0
	}
	constrained := 0
	for _, o := range offers {
		if o.RemotePolicy == types.RemoteOffice {
			constrained++
		}
	}
	return float64(constrained) / float64(len(offers))
}

func proximityRatio(offers []types.Offer, thresholdKm float64) float64 {
	if len(offers) == 0 {
		return 0
	}
	near := 0
	for _, o := range offers {
		if o.CommuteKm != nil && *o.CommuteKm < thresholdKm {
			near++
		}
	}
	return float64(near) / float64(len(offers))
}

func mobilityComplexityScore(m types.Mobility) float64 {
	switch m {
	case types.MobilityLocal:
		return 0.2
	case types.MobilityStandard:
		return 0.4
	case types.MobilityHybrid:
		return 0.6
	case types.MobilityFlexible:
		return 0.8
	case types.MobilityRemote:
		return 1.0
	default:
		return 0.0
	}
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

// fingerprint is a stable hash of (candidate identity + sorted offer ids +
// max_results), used only to key the optional LRU cache. max_results is
// included because it determines PerformanceMode (and therefore selector
// rule 5), so two requests that differ only in that config would otherwise
// collide on a stale cached Context.
func (a *Analyzer) fingerprint(req types.Request) string {
	if a.capacity <= 0 {
		return ""
	}
	ids := make([]string, 0, len(req.Offers))
	for _, o := range req.Offers {
		ids = append(ids, o.ID)
	}
	sort.Strings(ids)

	payload, err := json.Marshal(struct {
		CandidateID string   `json:"candidate_id"`
		OfferIDs    []string `json:"offer_ids"`
		MaxResults  int      `json:"max_results"`
	}{req.Candidate.ID, ids, req.Config.MaxResults})
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (a *Analyzer) lookup(fp string) (types.Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	elem, ok := a.cache[fp]
	if !ok {
		return types.Context{}, false
	}
	a.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).context, true
}

func (a *Analyzer) store(fp string, ctx types.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if elem, ok := a.cache[fp]; ok {
		elem.Value.(*cacheEntry).context = ctx
		a.order.MoveToFront(elem)
		return
	}

	elem := a.order.PushFront(&cacheEntry{key: fp, context: ctx})
	a.cache[fp] = elem

	for a.order.Len() > a.capacity {
		oldest := a.order.Back()
		if oldest == nil {
			break
		}
		a.order.Remove(oldest)
		delete(a.cache, oldest.Value.(*cacheEntry).key)
	}
}
