package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
)

const defaultBaseURL = "https://api.openai.com/v1"

const systemPrompt = `Você é um assistente médico especializado em triagem.

Especialidades disponíveis: %s.

Analise os sintomas e retorne APENAS um JSON válido no seguinte formato:
{"especialidades": [{"nome": "NOME_DA_ESPECIALIDADE", "probabilidade": 90, "justificativa": "Explicação breve"}]}

Regras:
- Retorne até 3 especialidades em ordem de relevância
- Probabilidade: 0-100 (quanto maior, mais adequada)
- Nome: use EXATAMENTE um dos nomes listados acima
- Justificativa: máximo 100 caracteres
- Retorne APENAS o JSON, sem texto adicional`

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RPM caps outgoing requests per minute; 0 means 60, negative disables.
	RPM int
}

// OpenAIClient classifies symptoms through an OpenAI compatible chat
// completions endpoint. Calls are rate limited and guarded by a circuit
// breaker; every failure surfaces as DependencyUnavailable.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RPM == 0:
		limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	case cfg.RPM > 0:
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RPM)), 1)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "triage-classifier",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &OpenAIClient{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		breaker:    breaker,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type classification struct {
	Especialidades []struct {
		Nome          string `json:"nome"`
		Probabilidade int    `json:"probabilidade"`
		Justificativa string `json:"justificativa"`
	} `json:"especialidades"`
}

// Classify bounds the wait for a rate limit token and the request itself by
// the configured timeout.
func (c *OpenAIClient) Classify(ctx context.Context, text string) ([]Suggestion, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(callCtx); err != nil {
			return nil, apperr.DependencyUnavailable("classifier", err)
		}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(callCtx, text)
	})
	if err != nil {
		return nil, apperr.DependencyUnavailable("classifier", err)
	}
	return out.([]Suggestion), nil
}

func (c *OpenAIClient) call(ctx context.Context, text string) ([]Suggestion, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, specialtyList())},
			{Role: "user", Content: "Sintomas: " + text},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("classifier request failed with status %d", resp.StatusCode)
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		return nil, errors.New("classifier response missing content")
	}

	return parseClassification(envelope.Choices[0].Message.Content)
}

func parseClassification(content string) ([]Suggestion, error) {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	var parsed classification
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("parse classifier output: %w", err)
	}

	out := make([]Suggestion, 0, len(parsed.Especialidades))
	for _, e := range parsed.Especialidades {
		specialty, ok := specialtyFromName(e.Nome)
		if !ok {
			continue
		}
		out = append(out, Suggestion{Specialty: specialty, Score: e.Probabilidade, Justification: e.Justificativa})
	}
	return out, nil
}

// specialtyFromName accepts codes and display names, with or without accents.
func specialtyFromName(name string) (catalog.Specialty, bool) {
	folded := strings.ToUpper(normalize(name))
	if folded == "CLINICA GERAL" || folded == "CLINICA_GERAL" {
		return catalog.ClinicoGeral, true
	}
	return catalog.ParseSpecialty(folded)
}

func specialtyList() string {
	all := catalog.Specialties()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
