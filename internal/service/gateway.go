package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
)

// GatewayService talks to the retrieval/LLM API that answers chat turns and
// ingests documents.
type GatewayService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGatewayService(baseURL, apiKey string) *GatewayService {
	return &GatewayService{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

type ChatRequest struct {
	SessionID uuid.UUID
	Message   string
	Tools     domain.ToolSet
}

type ChatReply struct {
	Message string          `json:"message"`
	Sources []domain.Source `json:"sources,omitempty"`
}

// FallbackReply is the canned answer used when the gateway fails.
func FallbackReply() *ChatReply {
	return &ChatReply{Message: config.FallbackReply}
}

// FallbackReplyFor is FallbackReply naming the tools the caller asked for.
func FallbackReplyFor(flags domain.RagSettings) *ChatReply {
	var used []string
	if flags.DocumentSearch {
		used = append(used, "document search")
	}
	if flags.WebSearch {
		used = append(used, "web search")
	}
	if flags.WebScraping {
		used = append(used, "web scraping")
	}

	reply := FallbackReply()
	if len(used) > 0 {
		reply.Message += " I've used " + strings.Join(used, ", ") + " to find this information."
	}
	return reply
}

type gatewayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gatewayChatPayload struct {
	Messages    []gatewayMessage      `json:"messages"`
	Filter      map[string]any        `json:"filter"`
	Limit       int                   `json:"limit"`
	SessionID   string                `json:"session_id,omitempty"`
	RagSettings domain.RagSettings    `json:"rag_settings"`
	Tools       []domain.ToolEnvelope `json:"tools,omitempty"`
}

type gatewayChatResponse struct {
	Answer    string      `json:"answer"`
	Response  string      `json:"response"`
	Sources   []rawSource `json:"sources"`
	Documents []rawSource `json:"documents"`
}

// Chat sends the latest user turn with the tool configuration. Only the
// current message is forwarded, not the session history.
func (s *GatewayService) Chat(ctx context.Context, chatReq ChatRequest) (*ChatReply, error) {
	payload := gatewayChatPayload{
		Messages:    []gatewayMessage{{Role: "user", Content: chatReq.Message}},
		Filter:      buildFilter(chatReq.Tools),
		Limit:       config.GatewayResultLimit,
		RagSettings: chatReq.Tools.Flags(),
		Tools:       chatReq.Tools.Envelopes(),
	}
	if chatReq.SessionID != uuid.Nil {
		payload.SessionID = chatReq.SessionID.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	var chatResp gatewayChatResponse
	if err := s.do(req, &chatResp); err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	message := chatResp.Answer
	if message == "" {
		message = chatResp.Response
	}
	if strings.TrimSpace(message) == "" {
		message = config.EmptyAnswerReply
	}

	raw := chatResp.Sources
	if len(raw) == 0 {
		raw = chatResp.Documents
	}

	return &ChatReply{
		Message: message,
		Sources: formatSources(raw),
	}, nil
}

// buildFilter narrows document search to a collection when one is chosen.
func buildFilter(tools domain.ToolSet) map[string]any {
	filter := map[string]any{}
	if tools.Document != nil && tools.Document.Collection != "" && tools.Document.Collection != "default" {
		filter["collection"] = map[string]string{"$eq": tools.Document.Collection}
	}
	return filter
}

type uploadResponse struct {
	ID      string `json:"id"`
	Results struct {
		DocumentID string `json:"document_id"`
	} `json:"results"`
}

func (r uploadResponse) documentID() string {
	if r.Results.DocumentID != "" {
		return r.Results.DocumentID
	}
	return r.ID
}

// UploadDocument streams a file to the gateway for ingestion and returns the
// gateway's document id.
func (s *GatewayService) UploadDocument(ctx context.Context, filename string, file io.Reader, metadata map[string]any) (string, error) {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy file: %w", err)
	}
	if err := mw.WriteField("metadata", string(meta)); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/documents/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(req)

	var out uploadResponse
	if err := s.do(req, &out); err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}
	return out.documentID(), nil
}

func (s *GatewayService) UploadDocumentURL(ctx context.Context, url string, metadata map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{
		"url":      url,
		"metadata": metadata,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/documents/upload-url", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	var out uploadResponse
	if err := s.do(req, &out); err != nil {
		return "", fmt.Errorf("upload document url: %w", err)
	}
	return out.documentID(), nil
}

func (s *GatewayService) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

func (s *GatewayService) do(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited by gateway (429): %w", domain.ErrGatewayUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway responded with status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
