package templates

// Name identifies a prompt template
type Name string

const (
	AnalysisPrompt        Name = "analysis"
	AnalysisFocusedPrompt Name = "analysis_focused"
	ReportPrompt          Name = "report"
	ReportFocusedPrompt   Name = "report_focused"
	SummaryPrompt         Name = "summary"
)

// Set is the decoded template document: LLM prompts plus the deterministic
// fallback content used when generation fails or is rejected.
type Set struct {
	Version  string          `yaml:"version"`
	Prompts  map[Name]string `yaml:"prompts"`
	Fallback Fallback        `yaml:"fallback"`
}

// Fallback holds the deterministic content emitted without an LLM
type Fallback struct {
	Report   string           `yaml:"report"`
	Summary  string           `yaml:"summary"`
	Analysis AnalysisFallback `yaml:"analysis"`
}

// AnalysisFallback holds the sentences of the pattern-matching analysis
type AnalysisFallback struct {
	DefaultPattern        string       `yaml:"default_pattern"`
	DefaultInsight        string       `yaml:"default_insight"`
	DefaultRecommendation string       `yaml:"default_recommendation"`
	Price                 string       `yaml:"price"`
	PositiveTrend         TrendPhrases `yaml:"positive_trend"`
	NegativeTrend         TrendPhrases `yaml:"negative_trend"`
	Entities              []Entity     `yaml:"entities"`
}

// TrendPhrases are formatted with the matched percentage
type TrendPhrases struct {
	Pattern        string `yaml:"pattern"`
	Insight        string `yaml:"insight"`
	Recommendation string `yaml:"recommendation"`
}

// Entity adds a fixed insight when Match occurs in the analysed text
type Entity struct {
	Match          string `yaml:"match"`
	Insight        string `yaml:"insight"`
	Recommendation string `yaml:"recommendation"`
}

// AnalysisData feeds the analysis prompts
type AnalysisData struct {
	Data         string
	AnalysisType string
	Context    string
	Prompt     string
}

// ReportData feeds the report prompts
type ReportData struct {
	Date       string
	Research   string
	Analysis   string
	Audience   string
	ReportType string
	Context    string
	Prompt     string
}

// SummaryData feeds the executive summary prompt
type SummaryData struct {
	Report string
}
