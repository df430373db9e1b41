// Package assistant talks to the hosted generative model behind the AZARA
// chat feature. The backend is an opaque request/response service; failures
// are reported to the caller, who substitutes a fallback message.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SystemInstruction primes the model as the in-app medical assistant.
const SystemInstruction = `You are AZARA, an intelligent AI medical assistant integrated into GiDi, a pharmacy management system.
Your role is to assist pharmacists and staff in Ghana.

Guidelines:
1. Provide accurate medical information based on WHO and FDA guidelines.
2. When asked about drug interactions, be thorough and warn about contraindications.
3. Explain complex medical terms simply.
4. If asked about inventory or sales, guide them on how to use the GiDi system (e.g., "You can check stock levels in the Inventory tab").
5. Always include a disclaimer that you are an AI and not a substitute for a doctor's professional diagnosis.
6. Be concise, professional, and empathetic.
7. Default currency is Ghana Cedis (₵).
8. You can analyze images of drug labels or packaging if provided.`

// FallbackMessage is shown to the user when the model cannot be reached.
const FallbackMessage = "I'm having trouble connecting to the medical database right now. Please try again."

// ErrNoAPIKey indicates the assistant was never configured.
var ErrNoAPIKey = errors.New("assistant api key is not configured")

// Turn is one prior exchange in a conversation. Role is "user" or "model".
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Image is an optional inline attachment sent with a message.
type Image struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64-encoded bytes
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewClient constructs a Client. The timeout bounds the whole request; a
// hung upstream must not hold the caller forever.
func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://generativelanguage.googleapis.com",
	}
}

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inline_data,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiRequest struct {
	SystemInstruction *apiContent  `json:"system_instruction,omitempty"`
	Contents          []apiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type apiResponse struct {
	Candidates []struct {
		Content apiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send submits the conversation history plus the new message (and optional
// inline image) and returns the generated reply text.
func (c *Client) Send(ctx context.Context, history []Turn, message string, image *Image) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	req := apiRequest{
		SystemInstruction: &apiContent{Parts: []apiPart{{Text: SystemInstruction}}},
	}
	req.GenerationConfig.Temperature = 0.7
	for _, turn := range history {
		req.Contents = append(req.Contents, apiContent{Role: turn.Role, Parts: []apiPart{{Text: turn.Text}}})
	}
	parts := []apiPart{}
	if image != nil {
		parts = append(parts, apiPart{InlineData: &apiInlineData{MimeType: image.MimeType, Data: image.Data}})
	}
	parts = append(parts, apiPart{Text: message})
	req.Contents = append(req.Contents, apiContent{Role: "user", Parts: parts})

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode assistant response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("assistant: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("assistant: unexpected status %d", resp.StatusCode)
	}
	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", errors.New("assistant: empty response")
}
