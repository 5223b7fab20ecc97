// Package types defines the unified data model shared by every stage of
// the matching pipeline: candidates, offers, context, algorithm ids, match
// results, and the top-level request/response envelopes.
package types

import "time"

// SkillLevel is the self-reported proficiency of a candidate skill.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// Mobility is a candidate's willingness to relocate or work remotely.
type Mobility string

const (
	MobilityLocal    Mobility = "local"
	MobilityStandard Mobility = "standard"
	MobilityHybrid   Mobility = "hybrid"
	MobilityRemote   Mobility = "remote"
	MobilityFlexible Mobility = "flexible"
)

// RemotePolicy is an offer's stance on remote work.
type RemotePolicy string

const (
	RemoteOffice RemotePolicy = "office"
	RemoteHybrid RemotePolicy = "hybrid"
	RemoteFull   RemotePolicy = "remote"
)

// Skill is one candidate or required competency.
type Skill struct {
	Name     string     `json:"name"`
	Level    SkillLevel `json:"level,omitempty"`
	Years    float64    `json:"years,omitempty"`
	Category string     `json:"category,omitempty"`
}

// Experience is one entry of a candidate's work history.
type Experience struct {
	Company      string   `json:"company"`
	Title        string   `json:"title"`
	Months       int      `json:"months"`
	Technologies []string `json:"technologies,omitempty"`
	TeamSize     int      `json:"team_size,omitempty"`
}

// Education is one entry of a candidate's academic history.
type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// Coordinates is an optional lat/lon pair attached to a Location.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is a place associated with a candidate or offer.
type Location struct {
	City        string       `json:"city"`
	Country     string       `json:"country,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Candidate is the semantic candidate profile carried through the pipeline.
type Candidate struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Skills      []Skill      `json:"skills"`
	Experiences []Experience `json:"experiences"`
	Education   []Education  `json:"education"`
	Location    Location     `json:"location"`
	Mobility    Mobility     `json:"mobility,omitempty"`
}

// ExperienceBand bounds the years of experience an offer expects.
type ExperienceBand struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max,omitempty"`
}

// SalaryBand is an optional compensation range attached to an offer.
type SalaryBand struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency,omitempty"`
}

// Offer is one job offer being matched against a candidate.
type Offer struct {
	ID                    string                 `json:"id"`
	Title                 string                 `json:"title"`
	Company               string                 `json:"company"`
	RequiredSkills        []Skill                `json:"required_skills"`
	PreferredSkills       []Skill                `json:"preferred_skills,omitempty"`
	Experience            ExperienceBand         `json:"experience"`
	Location              Location               `json:"location"`
	RemotePolicy          RemotePolicy           `json:"remote_policy"`
	CommuteKm             *float64               `json:"commute_km,omitempty"`
	Salary                *SalaryBand            `json:"salary,omitempty"`
	CompanyQuestionnaire  map[string]interface{} `json:"company_questionnaire,omitempty"`
}

// AlgorithmID identifies one of the five known matching algorithms.
type AlgorithmID string

const (
	AlgorithmNexten   AlgorithmID = "nexten"
	AlgorithmSmart    AlgorithmID = "smart"
	AlgorithmEnhanced AlgorithmID = "enhanced"
	AlgorithmSemantic AlgorithmID = "semantic"
	AlgorithmHybrid   AlgorithmID = "hybrid"
	AlgorithmAuto     AlgorithmID = "auto"
	AlgorithmNone     AlgorithmID = "none"
	AlgorithmMinimal  AlgorithmID = "minimal_fallback"
)

// AllAlgorithms lists the five concrete (non-sentinel) algorithm ids, in
// registration order.
var AllAlgorithms = []AlgorithmID{
	AlgorithmNexten, AlgorithmSmart, AlgorithmEnhanced, AlgorithmSemantic, AlgorithmHybrid,
}

// SeniorityLevel buckets a candidate's years of experience.
type SeniorityLevel string

const (
	SeniorityJunior SeniorityLevel = "junior"
	SeniorityMid    SeniorityLevel = "mid"
	SenioritySenior SeniorityLevel = "senior"
	SeniorityExpert SeniorityLevel = "expert"
)

// AnalysisType is the kind of analysis the context implies downstream
// components should favor.
type AnalysisType string

const (
	AnalysisStandard           AnalysisType = "standard"
	AnalysisSemanticPure       AnalysisType = "semantic_pure"
	AnalysisGeolocationFocused AnalysisType = "geolocation_focused"
	AnalysisExperienceWeighted AnalysisType = "experience_weighted"
	AnalysisHybridValidation   AnalysisType = "hybrid_validation"
)

// Context is the derived, read-only summary of a request the selector acts
// on. It is produced once per request by the context analyzer.
type Context struct {
	DataCompleteness            float64        `json:"data_completeness"`
	QuestionnaireCounted        bool           `json:"questionnaire_counted"`
	CompanyQuestionnairesCounted bool          `json:"company_questionnaires_counted"`
	CVCompleteness               float64       `json:"cv_completeness"`
	SeniorityLevel               SeniorityLevel `json:"seniority_level"`
	ExperienceYears               float64       `json:"experience_years"`
	MobilityType                  Mobility      `json:"mobility_type"`
	SkillsCount                   int           `json:"skills_count"`
	GeoCritical                   bool          `json:"geo_critical"`
	MaxCommuteKm                  *float64      `json:"max_commute_km,omitempty"`
	RelocationPossible            bool          `json:"relocation_possible"`
	RemoteAcceptable               bool         `json:"remote_acceptable"`
	ComplexityScore                float64      `json:"complexity_score"`
	RequiresValidation              bool        `json:"requires_validation"`
	AnalysisType                    AnalysisType `json:"analysis_type"`
	OfferCount                      int          `json:"offer_count"`
	PerformanceMode                  bool        `json:"performance_mode"`
}

// CategoryScores breaks an overall score down by dimension.
type CategoryScores struct {
	Skills        float64  `json:"skills"`
	Experience    float64  `json:"experience"`
	Location      float64  `json:"location"`
	Culture       float64  `json:"culture"`
	Questionnaire *float64 `json:"questionnaire,omitempty"`
}

// MatchResult is one unified, scored candidate/offer pairing.
type MatchResult struct {
	OfferID         string         `json:"offer_id"`
	OverallScore    float64        `json:"overall_score"`
	Confidence      float64        `json:"confidence"`
	CategoryScores  CategoryScores `json:"category_scores"`
	MatchedSkills   []string       `json:"matched_skills,omitempty"`
	MissingSkills   []string       `json:"missing_skills,omitempty"`
	Insights        []string       `json:"insights,omitempty"`
	Explanation     string         `json:"explanation,omitempty"`
	AlgorithmUsed   AlgorithmID    `json:"algorithm_used"`
	ProcessingTime  time.Duration  `json:"processing_time_ns"`
	IsFallback      bool           `json:"is_fallback,omitempty"`
	OriginalAlgo    AlgorithmID    `json:"original_algorithm,omitempty"`
	FallbackAlgo    AlgorithmID    `json:"fallback_algorithm,omitempty"`
}

// RequestConfig carries per-request overrides supplied by the caller.
type RequestConfig struct {
	Algorithm           AlgorithmID `json:"algorithm,omitempty"`
	EnableFallback      *bool       `json:"enable_fallback,omitempty"`
	IncludeExplanations bool        `json:"include_explanations,omitempty"`
	MaxResults          int         `json:"max_results,omitempty"`
	UserID              string      `json:"user_id,omitempty"`
}

// Request is one immutable unified matching request.
type Request struct {
	Candidate               Candidate              `json:"candidate"`
	CandidateQuestionnaire  map[string]interface{} `json:"candidate_questionnaire,omitempty"`
	Offers                  []Offer                `json:"offers"`
	Config                  RequestConfig          `json:"config"`
}

// ResponseStatus is the top-level outcome flag returned to the caller.
type ResponseStatus string

const (
	StatusOK            ResponseStatus = "ok"
	StatusDegraded      ResponseStatus = "degraded"
	StatusCriticalError ResponseStatus = "critical_error"
)

// ContextSummary is the subset of Context surfaced in response metadata.
type ContextSummary struct {
	DataCompleteness float64        `json:"data_completeness"`
	SeniorityLevel   SeniorityLevel `json:"seniority_level"`
	ComplexityScore  float64        `json:"complexity_score"`
	AnalysisType     AnalysisType   `json:"analysis_type"`
	GeoCritical      bool           `json:"geo_critical"`
}

// ResponseMetadata carries selection and execution audit data.
type ResponseMetadata struct {
	AlgorithmUsed          AlgorithmID    `json:"algorithm_used"`
	SelectionReason        string         `json:"selection_reason"`
	ContextAnalysis        ContextSummary `json:"context_analysis"`
	ExecutionTimeMs        int64          `json:"execution_time_ms"`
	AlternativeAlgorithms  []AlgorithmID  `json:"alternative_algorithms,omitempty"`
	Degraded               bool           `json:"degraded,omitempty"`
}

// Response is the unified reply to a matching request.
type Response struct {
	Matches   []MatchResult    `json:"matches"`
	Metadata  ResponseMetadata `json:"metadata"`
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Status    ResponseStatus   `json:"status"`
	Warning   string           `json:"warning,omitempty"`
}
