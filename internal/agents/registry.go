package agents

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/analytics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/collector"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/templates"
)

// Agent type tags accepted by workflows
const (
	TagResearch = "research"
	TagAnalysis = "analysis"
	TagReport   = "report"
)

// Deps are the collaborators agents are built from
type Deps struct {
	Logger     *zap.Logger
	Collector  collector.Collector
	LLM        llm.Client
	Templates  *templates.Templates
	Algorithms *analytics.Registry
	Quality    Quality
	Audit      AuditSink
}

// Factory builds a fresh agent instance
type Factory func(Deps) Agent

// Description is the public view of a registered agent
type Description struct {
	Tag         string `json:"tag"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type registration struct {
	tag     string
	factory Factory
}

// Registry maps the closed set of agent tags to constructors, in workflow order
type Registry struct {
	entries []registration
}

// DefaultRegistry returns the research, analysis and report agents
func DefaultRegistry() *Registry {
	return &Registry{entries: []registration{
		{tag: TagResearch, factory: func(d Deps) Agent {
			return NewResearchAgent(d.Collector, d.Logger, d.Audit)
		}},
		{tag: TagAnalysis, factory: func(d Deps) Agent {
			return NewAnalysisAgent(d.LLM, d.Templates, d.Algorithms, d.Logger, d.Audit)
		}},
		{tag: TagReport, factory: func(d Deps) Agent {
			return NewReportAgent(d.LLM, d.Templates, d.Quality, d.Logger, d.Audit)
		}},
	}}
}

// Tags lists registered tags in registration order
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		tags = append(tags, e.tag)
	}
	return tags
}

// Has reports whether tag is registered
func (r *Registry) Has(tag string) bool {
	for _, e := range r.entries {
		if e.tag == tag {
			return true
		}
	}
	return false
}

// New builds one agent by tag
func (r *Registry) New(tag string, deps Deps) (Agent, error) {
	for _, e := range r.entries {
		if e.tag == tag {
			return e.factory(deps), nil
		}
	}
	return nil, fmt.Errorf("unknown agent type %q", tag)
}

// Build constructs a fresh instance of every registered agent
func (r *Registry) Build(deps Deps) map[string]Agent {
	out := make(map[string]Agent, len(r.entries))
	for _, e := range r.entries {
		out[e.tag] = e.factory(deps)
	}
	return out
}

// Describe returns the name and description of every registered agent
func (r *Registry) Describe() []Description {
	agents := r.Build(Deps{})
	out := make([]Description, 0, len(r.entries))
	for _, e := range r.entries {
		a := agents[e.tag]
		out = append(out, Description{Tag: e.tag, Name: a.Name(), Description: a.Description()})
	}
	return out
}

// Override returns a copy of the registry with tag bound to factory. Unknown
// tags are appended.
func (r *Registry) Override(tag string, factory Factory) *Registry {
	entries := append([]registration{}, r.entries...)
	for i := range entries {
		if entries[i].tag == tag {
			entries[i].factory = factory
			return &Registry{entries: entries}
		}
	}
	return &Registry{entries: append(entries, registration{tag: tag, factory: factory})}
}
