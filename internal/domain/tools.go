package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type ToolKind string

const (
	ToolDocumentSearch ToolKind = "document"
	ToolWebSearch      ToolKind = "web"
	ToolWebScraping    ToolKind = "scrape"
)

// ToolConfig is one retrieval tool with its own parameter schema.
type ToolConfig interface {
	Kind() ToolKind
	Validate() error
}

type DocumentSearchConfig struct {
	MaxResults  int     `json:"max_results"`
	Threshold   float64 `json:"threshold"`
	UseMetadata bool    `json:"use_metadata"`
	Collection  string  `json:"collection"`
}

func DefaultDocumentSearch() *DocumentSearchConfig {
	return &DocumentSearchConfig{MaxResults: 5, Threshold: 0.7, UseMetadata: true, Collection: "default"}
}

func (c *DocumentSearchConfig) Kind() ToolKind { return ToolDocumentSearch }

func (c *DocumentSearchConfig) Validate() error {
	if c.MaxResults < 1 || c.MaxResults > 10 {
		return fmt.Errorf("%w: document max_results must be between 1 and 10", ErrInvalidToolConfig)
	}
	if c.Threshold < 0.1 || c.Threshold > 1 {
		return fmt.Errorf("%w: document threshold must be between 0.1 and 1.0", ErrInvalidToolConfig)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: document collection is required", ErrInvalidToolConfig)
	}
	return nil
}

type WebSearchConfig struct {
	MaxResults      int    `json:"max_results"`
	SafeSearch      bool   `json:"safe_search"`
	SiteRestriction string `json:"site_restriction"`
}

func DefaultWebSearch() *WebSearchConfig {
	return &WebSearchConfig{MaxResults: 3, SafeSearch: true}
}

func (c *WebSearchConfig) Kind() ToolKind { return ToolWebSearch }

func (c *WebSearchConfig) Validate() error {
	if c.MaxResults < 1 || c.MaxResults > 10 {
		return fmt.Errorf("%w: web max_results must be between 1 and 10", ErrInvalidToolConfig)
	}
	if c.SiteRestriction != "" && !isHostname(c.SiteRestriction) {
		return fmt.Errorf("%w: web site_restriction %q is not a hostname", ErrInvalidToolConfig, c.SiteRestriction)
	}
	return nil
}

type WebScrapingConfig struct {
	Depth            int  `json:"depth"`
	MaxPages         int  `json:"max_pages"`
	RespectRobotsTxt bool `json:"respect_robots_txt"`
}

func DefaultWebScraping() *WebScrapingConfig {
	return &WebScrapingConfig{Depth: 1, MaxPages: 3, RespectRobotsTxt: true}
}

func (c *WebScrapingConfig) Kind() ToolKind { return ToolWebScraping }

func (c *WebScrapingConfig) Validate() error {
	if c.Depth < 1 || c.Depth > 5 {
		return fmt.Errorf("%w: scrape depth must be between 1 and 5", ErrInvalidToolConfig)
	}
	if c.MaxPages < 1 || c.MaxPages > 10 {
		return fmt.Errorf("%w: scrape max_pages must be between 1 and 10", ErrInvalidToolConfig)
	}
	return nil
}

func isHostname(s string) bool {
	if strings.ContainsAny(s, " /:?#@") || !strings.Contains(s, ".") {
		return false
	}
	u, err := url.Parse("//" + s)
	return err == nil && u.Host == s
}

// RagSettings are the on/off flags of the retrieval tools.
type RagSettings struct {
	DocumentSearch bool `json:"documentSearch"`
	WebSearch      bool `json:"webSearch"`
	WebScraping    bool `json:"webScraping"`
}

// ToolSet holds the enabled tools, at most one per kind. A nil entry is disabled.
type ToolSet struct {
	Document *DocumentSearchConfig
	Web      *WebSearchConfig
	Scrape   *WebScrapingConfig
}

// DefaultToolSet has document search enabled with default parameters.
func DefaultToolSet() ToolSet {
	return ToolSet{Document: DefaultDocumentSearch()}
}

// NewToolSet enables every flagged tool with default parameters, then applies
// explicit configurations. An explicit configuration enables its tool.
func NewToolSet(flags RagSettings, configs []ToolConfig) (ToolSet, error) {
	var set ToolSet
	if flags.DocumentSearch {
		set.Document = DefaultDocumentSearch()
	}
	if flags.WebSearch {
		set.Web = DefaultWebSearch()
	}
	if flags.WebScraping {
		set.Scrape = DefaultWebScraping()
	}

	seen := make(map[ToolKind]bool, len(configs))
	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		if seen[cfg.Kind()] {
			return ToolSet{}, fmt.Errorf("%w: duplicate %s configuration", ErrInvalidToolConfig, cfg.Kind())
		}
		seen[cfg.Kind()] = true

		switch c := cfg.(type) {
		case *DocumentSearchConfig:
			set.Document = c
		case *WebSearchConfig:
			set.Web = c
		case *WebScrapingConfig:
			set.Scrape = c
		default:
			return ToolSet{}, fmt.Errorf("%w: unsupported tool %q", ErrInvalidToolConfig, cfg.Kind())
		}
	}

	if err := set.Validate(); err != nil {
		return ToolSet{}, err
	}
	return set, nil
}

func (t ToolSet) Validate() error {
	for _, cfg := range t.Configs() {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t ToolSet) Flags() RagSettings {
	return RagSettings{
		DocumentSearch: t.Document != nil,
		WebSearch:      t.Web != nil,
		WebScraping:    t.Scrape != nil,
	}
}

// Configs lists the enabled tools in a stable order.
func (t ToolSet) Configs() []ToolConfig {
	var out []ToolConfig
	if t.Document != nil {
		out = append(out, t.Document)
	}
	if t.Web != nil {
		out = append(out, t.Web)
	}
	if t.Scrape != nil {
		out = append(out, t.Scrape)
	}
	return out
}

// ToolEnvelope is the tagged JSON form of a ToolConfig: {"type": "...", ...params}.
type ToolEnvelope struct {
	Config ToolConfig
}

func (e *ToolEnvelope) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ToolKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToolConfig, err)
	}

	var cfg ToolConfig
	switch head.Type {
	case ToolDocumentSearch:
		cfg = DefaultDocumentSearch()
	case ToolWebSearch:
		cfg = DefaultWebSearch()
	case ToolWebScraping:
		cfg = DefaultWebScraping()
	default:
		return fmt.Errorf("%w: unknown tool type %q", ErrInvalidToolConfig, head.Type)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidToolConfig, head.Type, err)
	}
	e.Config = cfg
	return nil
}

func (e ToolEnvelope) MarshalJSON() ([]byte, error) {
	if e.Config == nil {
		return []byte("null"), nil
	}
	params, err := json.Marshal(e.Config)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(params, &fields); err != nil {
		return nil, err
	}
	fields["type"] = e.Config.Kind()
	return json.Marshal(fields)
}

// Envelopes wraps the enabled tools for the wire.
func (t ToolSet) Envelopes() []ToolEnvelope {
	cfgs := t.Configs()
	out := make([]ToolEnvelope, len(cfgs))
	for i, c := range cfgs {
		out[i] = ToolEnvelope{Config: c}
	}
	return out
}

// UnwrapTools extracts the configurations from decoded envelopes.
func UnwrapTools(envs []ToolEnvelope) []ToolConfig {
	out := make([]ToolConfig, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Config)
	}
	return out
}
