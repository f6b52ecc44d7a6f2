package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultTimeout = 60 * time.Second

// HTTPClient talks to the interview backend over its JSON HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// NewHTTPClient creates a client for the backend at baseURL
// (e.g. "http://localhost:8000").
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("service: baseURL must not be empty")
	}
	h := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Start uploads a resume and opens a new interview session. The backend
// parses the resume and returns the session token plus the first question.
func (h *HTTPClient) Start(ctx context.Context, resume io.Reader, filename string) (*StartResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("service: build upload: %w", err)
	}
	if _, err := io.Copy(part, resume); err != nil {
		return nil, fmt.Errorf("service: read resume: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("service: finish upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/upload-resume", &body)
	if err != nil {
		return nil, fmt.Errorf("service: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result StartResult
	if err := h.do(req, &result); err != nil {
		return nil, err
	}
	if result.SessionID == "" || result.FirstQuestion == "" {
		return nil, fmt.Errorf("service: incomplete session-start response")
	}
	return &result, nil
}

// Submit implements Client.
func (h *HTTPClient) Submit(ctx context.Context, sr SubmitRequest) (*SubmitResult, error) {
	payload, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("service: encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/submit-answer", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("service: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result SubmitResult
	if err := h.do(req, &result); err != nil {
		return nil, err
	}
	if result.NextQuestion == "" && result.FinalReport == "" {
		return nil, fmt.Errorf("service: response carries neither a next question nor a final report")
	}
	return &result, nil
}

// do executes the request and decodes the JSON response into out.
func (h *HTTPClient) do(req *http.Request, out any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("service: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Bounded read so a broken backend cannot balloon the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("service: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("service: decode response: %w", err)
	}
	return nil
}

// Ensure HTTPClient implements Client at compile time.
var _ Client = (*HTTPClient)(nil)
