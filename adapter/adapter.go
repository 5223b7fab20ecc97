// Package adapter translates between the unified request/response shape
// and each algorithm's native payload shape (spec.md §4.3).
package adapter

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

// Weights are the algorithm-scoped scoring weight knobs attached to every
// adapted config, per spec.md §4.3.
type Weights struct {
	Skills        float64 `json:"skills"`
	Experience    float64 `json:"experience"`
	Location      float64 `json:"location"`
	Culture       float64 `json:"culture"`
	Questionnaire float64 `json:"questionnaire,omitempty"`
}

// DefaultWeights returns the spec-mandated defaults (0.4/0.3/0.2/0.1),
// with NEXTEN's extra 0.1 questionnaire weight layered on top by the
// caller when appropriate.
func DefaultWeights() Weights {
	return Weights{Skills: 0.4, Experience: 0.3, Location: 0.2, Culture: 0.1}
}

// NativeCandidate is the NEXTEN-shaped candidate payload.
type NativeCandidate struct {
	CV            map[string]interface{} `json:"cv"`
	Questionnaire map[string]interface{} `json:"questionnaire"`
	Preferences   map[string]interface{} `json:"preferences"`
}

// NativeOffer is the NEXTEN-shaped offer payload.
type NativeOffer struct {
	JobInfo       map[string]interface{} `json:"job_info"`
	CompanyInfo   map[string]interface{} `json:"company_info"`
	Requirements  map[string]interface{} `json:"requirements"`
	Questionnaire map[string]interface{} `json:"questionnaire"`
	Conditions    map[string]interface{} `json:"conditions"`
}

// GenericCandidate is the 1:1 mapped candidate payload used by SMART,
// ENHANCED, SEMANTIC and HYBRID.
type GenericCandidate struct {
	ID          string           `json:"id"`
	Skills      []types.Skill    `json:"skills"`
	Experiences []types.Experience `json:"experiences"`
	Education   []types.Education `json:"education"`
	Location    types.Location   `json:"location"`
	Mobility    types.Mobility   `json:"mobility"`
}

// GenericOffer is the 1:1 mapped offer payload used by the non-NEXTEN
// algorithms.
type GenericOffer struct {
	ID              string              `json:"id"`
	RequiredSkills  []types.Skill       `json:"required_skills"`
	PreferredSkills []types.Skill       `json:"preferred_skills"`
	Experience      types.ExperienceBand `json:"experience"`
	Location        types.Location      `json:"location"`
	RemotePolicy    types.RemotePolicy  `json:"remote_policy"`
}

// NativeResult is the shape an executor returns per offer, before
// normalization back into types.MatchResult.
type NativeResult struct {
	OfferID        string             `json:"offer_id"`
	Score          float64            `json:"score"`
	Confidence     *float64           `json:"confidence,omitempty"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
	MatchedSkills  []string           `json:"matched_skills,omitempty"`
	MissingSkills  []string           `json:"missing_skills,omitempty"`
	Explanation    string             `json:"explanation,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Adapter performs request/response translation for every algorithm,
// backed by a bounded LRU fingerprint cache (non-authoritative — a cache
// miss always falls back to recomputation).
type Adapter struct {
	weights Weights
	logger  core.Logger

	mu       sync.Mutex
	cache    map[string]*list.Element
	order    *list.List
	capacity int
}

type cacheEntry struct {
	key     string
	payload adaptedRequest
}

type adaptedRequest struct {
	native NativeCandidate
	generic GenericCandidate
}

// New builds an Adapter with the given default weights and cache size (0
// disables caching).
func New(weights Weights, cacheSize int, logger core.Logger) *Adapter {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Adapter{
		weights:  weights,
		logger:   logger,
		cache:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: cacheSize,
	}
}

// AdaptRequest translates a unified request into the native candidate and
// offer payloads for algo, plus the algorithm-scoped config map. The
// candidate-side payload is keyed by Fingerprint in the LRU cache so repeat
// calls for the same (candidate, offers, algorithm) skip re-adaptation;
// offers are always recomputed since they are cheap and rarely repeat.
func (a *Adapter) AdaptRequest(req types.Request, algo types.AlgorithmID) (candidatePayload interface{}, offersPayload interface{}, config map[string]interface{}) {
	weights := a.weights
	config = map[string]interface{}{
		"skills_weight":     weights.Skills,
		"experience_weight": weights.Experience,
		"location_weight":   weights.Location,
		"culture_weight":    weights.Culture,
	}

	fp := Fingerprint(req, algo)
	native, generic, cached := a.CacheLookup(fp)

	if algo == types.AlgorithmNexten {
		questionnaireWeight := weights.Questionnaire
		if questionnaireWeight == 0 {
			questionnaireWeight = 0.1
		}
		config["questionnaire_weight"] = questionnaireWeight
		if !cached {
			native = a.adaptNextenCandidate(req)
			a.CacheStore(fp, native, GenericCandidate{})
		}
		return native, a.adaptNextenOffers(req.Offers), config
	}

	if !cached {
		generic = a.adaptGenericCandidate(req.Candidate)
		a.CacheStore(fp, NativeCandidate{}, generic)
	}
	return generic, a.adaptGenericOffers(req.Offers), config
}

func (a *Adapter) adaptNextenCandidate(req types.Request) NativeCandidate {
	return NativeCandidate{
		CV: map[string]interface{}{
			"personal_info": map[string]interface{}{
				"id":   req.Candidate.ID,
				"name": req.Candidate.Name,
			},
			"experiences":    req.Candidate.Experiences,
			"skills":         req.Candidate.Skills,
			"education":      req.Candidate.Education,
			"certifications": []interface{}{},
		},
		Questionnaire: req.CandidateQuestionnaire,
		Preferences: map[string]interface{}{
			"mobility": req.Candidate.Mobility,
			"location": req.Candidate.Location,
		},
	}
}

func (a *Adapter) adaptNextenOffers(offers []types.Offer) []NativeOffer {
	out := make([]NativeOffer, 0, len(offers))
	for _, o := range offers {
		out = append(out, NativeOffer{
			JobInfo: map[string]interface{}{
				"id":    o.ID,
				"title": o.Title,
			},
			CompanyInfo: map[string]interface{}{
				"name": o.Company,
			},
			Requirements: map[string]interface{}{
				"required_skills":  o.RequiredSkills,
				"preferred_skills": o.PreferredSkills,
				"experience":       o.Experience,
			},
			Questionnaire: o.CompanyQuestionnaire,
			Conditions: map[string]interface{}{
				"location":      o.Location,
				"remote_policy": o.RemotePolicy,
				"salary":        o.Salary,
			},
		})
	}
	return out
}

func (a *Adapter) adaptGenericCandidate(c types.Candidate) GenericCandidate {
	return GenericCandidate{
		ID:          c.ID,
		Skills:      c.Skills,
		Experiences: c.Experiences,
		Education:   c.Education,
		Location:    c.Location,
		Mobility:    c.Mobility,
	}
}

func (a *Adapter) adaptGenericOffers(offers []types.Offer) []GenericOffer {
	out := make([]GenericOffer, 0, len(offers))
	for _, o := range offers {
		out = append(out, GenericOffer{
			ID:              o.ID,
			RequiredSkills:  o.RequiredSkills,
			PreferredSkills: o.PreferredSkills,
			Experience:      o.Experience,
			Location:        o.Location,
			RemotePolicy:    o.RemotePolicy,
		})
	}
	return out
}

// NormalizeResults translates an algorithm's native results back into the
// unified MatchResult shape. originalOfferIDs gives the full ordered offer
// id list so missing results can be padded with degraded entries — the
// adapter never invents scores; a normalization failure always yields the
// documented degraded placeholder (spec.md §4.3).
func (a *Adapter) NormalizeResults(native []NativeResult, algo types.AlgorithmID, originalOfferIDs []string) []types.MatchResult {
	byOffer := make(map[string]NativeResult, len(native))
	for _, r := range native {
		if r.OfferID == "" {
			continue
		}
		byOffer[r.OfferID] = r
	}

	results := make([]types.MatchResult, 0, len(originalOfferIDs))
	for _, offerID := range originalOfferIDs {
		r, ok := byOffer[offerID]
		if !ok {
			results = append(results, degradedResult(offerID, algo))
			continue
		}
		results = append(results, a.normalizeOne(r, algo))
	}
	return results
}

func (a *Adapter) normalizeOne(r NativeResult, algo types.AlgorithmID) types.MatchResult {
	score := clamp01(r.Score)
	if isNaN(r.Score) {
		return degradedResult(r.OfferID, algo)
	}

	confidence := 0.5
	if r.Confidence != nil {
		confidence = clamp01(*r.Confidence)
	}

	cat := types.CategoryScores{
		Skills:     categoryOrDefault(r.CategoryScores, "skills", score),
		Experience: categoryOrDefault(r.CategoryScores, "experience", score),
		Location:   categoryOrDefault(r.CategoryScores, "location", score),
		Culture:    categoryOrDefault(r.CategoryScores, "culture", score),
	}
	if q, ok := r.CategoryScores["questionnaire"]; ok {
		cat.Questionnaire = &q
	}

	return types.MatchResult{
		OfferID:        r.OfferID,
		OverallScore:   score,
		Confidence:     confidence,
		CategoryScores: cat,
		MatchedSkills:  r.MatchedSkills,
		MissingSkills:  r.MissingSkills,
		Explanation:    r.Explanation,
		AlgorithmUsed:  algo,
	}
}

func degradedResult(offerID string, algo types.AlgorithmID) types.MatchResult {
	return types.MatchResult{
		OfferID:      offerID,
		OverallScore: 0.5,
		Confidence:   0.2,
		CategoryScores: types.CategoryScores{
			Skills: 0.5, Experience: 0.5, Location: 0.5, Culture: 0.5,
		},
		Explanation:   "fallback: adapter normalization failed",
		AlgorithmUsed: algo,
	}
}

func categoryOrDefault(m map[string]float64, key string, def float64) float64 {
	if m == nil {
		return def
	}
	if v, ok := m[key]; ok {
		return clamp01(v)
	}
	return def
}

func clamp01(v float64) float64 {
	if isNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isNaN(v float64) bool { return v != v }

// Fingerprint computes a stable hash of (candidate id + sorted offer ids +
// algorithm id), used only to key the optional adapted-payload cache.
func Fingerprint(req types.Request, algo types.AlgorithmID) string {
	ids := make([]string, 0, len(req.Offers))
	for _, o := range req.Offers {
		ids = append(ids, o.ID)
	}
	sort.Strings(ids)

	payload, err := json.Marshal(struct {
		CandidateID string            `json:"candidate_id"`
		OfferIDs    []string          `json:"offer_ids"`
		Algorithm   types.AlgorithmID `json:"algorithm"`
	}{req.Candidate.ID, ids, algo})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// CacheLookup returns a previously cached adapted candidate payload, if any.
func (a *Adapter) CacheLookup(fp string) (NativeCandidate, GenericCandidate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	elem, ok := a.cache[fp]
	if !ok {
		return NativeCandidate{}, GenericCandidate{}, false
	}
	a.order.MoveToFront(elem)
	e := elem.Value.(*cacheEntry)
	return e.payload.native, e.payload.generic, true
}

// CacheStore records an adapted candidate payload for fp, evicting the
// least-recently-used entry if the cache is at capacity.
func (a *Adapter) CacheStore(fp string, native NativeCandidate, generic GenericCandidate) {
	if a.capacity <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if elem, ok := a.cache[fp]; ok {
		elem.Value.(*cacheEntry).payload = adaptedRequest{native: native, generic: generic}
		a.order.MoveToFront(elem)
		return
	}

	elem := a.order.PushFront(&cacheEntry{key: fp, payload: adaptedRequest{native: native, generic: generic}})
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
