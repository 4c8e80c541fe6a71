package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolSet_FlagsUseDefaults(t *testing.T) {
	set, err := NewToolSet(RagSettings{DocumentSearch: true, WebScraping: true}, nil)
	require.NoError(t, err)

	require.NotNil(t, set.Document)
	assert.Equal(t, 5, set.Document.MaxResults)
	assert.Equal(t, 0.7, set.Document.Threshold)
	assert.Nil(t, set.Web)
	require.NotNil(t, set.Scrape)
	assert.Equal(t, 3, set.Scrape.MaxPages)

	assert.Equal(t, RagSettings{DocumentSearch: true, WebScraping: true}, set.Flags())
}

func TestNewToolSet_ExplicitConfigEnablesTool(t *testing.T) {
	set, err := NewToolSet(RagSettings{}, []ToolConfig{
		&WebSearchConfig{MaxResults: 7, SiteRestriction: "unfccc.int"},
	})
	require.NoError(t, err)
	require.NotNil(t, set.Web)
	assert.Equal(t, 7, set.Web.MaxResults)
	assert.True(t, set.Flags().WebSearch)
	assert.False(t, set.Flags().DocumentSearch)
}

func TestNewToolSet_RejectsDuplicates(t *testing.T) {
	_, err := NewToolSet(RagSettings{}, []ToolConfig{DefaultWebScraping(), DefaultWebScraping()})
	assert.ErrorIs(t, err, ErrInvalidToolConfig)
}

func TestToolConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  ToolConfig
		ok   bool
	}{
		{"document defaults", DefaultDocumentSearch(), true},
		{"document too many results", &DocumentSearchConfig{MaxResults: 11, Threshold: 0.5, Collection: "c"}, false},
		{"document threshold too low", &DocumentSearchConfig{MaxResults: 1, Threshold: 0.05, Collection: "c"}, false},
		{"document empty collection", &DocumentSearchConfig{MaxResults: 1, Threshold: 0.5, Collection: " "}, false},
		{"web defaults", DefaultWebSearch(), true},
		{"web bad site", &WebSearchConfig{MaxResults: 3, SiteRestriction: "https://example.com/x"}, false},
		{"web zero results", &WebSearchConfig{MaxResults: 0}, false},
		{"scrape defaults", DefaultWebScraping(), true},
		{"scrape too deep", &WebScrapingConfig{Depth: 6, MaxPages: 1}, false},
		{"scrape no pages", &WebScrapingConfig{Depth: 1, MaxPages: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidToolConfig)
			}
		})
	}
}

func TestToolEnvelope_DecodeFillsDefaults(t *testing.T) {
	var envs []ToolEnvelope
	err := json.Unmarshal([]byte(`[{"type":"document","max_results":8},{"type":"scrape","depth":2}]`), &envs)
	require.NoError(t, err)
	require.Len(t, envs, 2)

	doc, ok := envs[0].Config.(*DocumentSearchConfig)
	require.True(t, ok)
	assert.Equal(t, 8, doc.MaxResults)
	assert.Equal(t, 0.7, doc.Threshold)
	assert.Equal(t, "default", doc.Collection)

	scrape, ok := envs[1].Config.(*WebScrapingConfig)
	require.True(t, ok)
	assert.Equal(t, 2, scrape.Depth)
	assert.True(t, scrape.RespectRobotsTxt)
}

func TestToolEnvelope_UnknownType(t *testing.T) {
	var env ToolEnvelope
	err := json.Unmarshal([]byte(`{"type":"telepathy"}`), &env)
	assert.ErrorIs(t, err, ErrInvalidToolConfig)
}

func TestToolEnvelope_EncodeCarriesType(t *testing.T) {
	data, err := json.Marshal(DefaultToolSet().Envelopes())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"document","max_results":5,"threshold":0.7,"use_metadata":true,"collection":"default"}]`, string(data))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.2))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.92, ClampConfidence(0.92))
}

func TestPeriodFor(t *testing.T) {
	p := PeriodFor(time.Date(2026, time.February, 17, 13, 4, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), p.End)
}
