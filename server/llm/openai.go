package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"carrot-arena/server/agent"
	"carrot-arena/server/engine"
)

// PingOptions controls JSON mode + reasoning + tokens.
type PingOptions struct {
	ReasoningEffort      string
	MaxOutputTokens      *int
	StructuredSchemaName string
	StructuredSchema     map[string]any
	StructuredStrict     bool
}

const System = `
You are playing Hase und Igel (the hare and the hedgehog), a two-player race.
Carrots are the currency; salads must be eaten before the goal.

- You receive the current observation as JSON.
- Return exactly one option from legal_actions.
- For exchange_carrots include an integer amount: positive takes carrots, negative gives them back.
  If exchange_options is non-empty, amount must be one of them.
- For eat_salad use amount null.
- Never give back more carrots than you hold.
- Do not add commentary or explanations.
`

// PingTextWithOpts sends one chat/completions request and returns the text
// of the first choice.
func PingTextWithOpts(ctx context.Context, model, system, user string, opts PingOptions) (string, error) {
	cfg, err := resolveAPIConfig(model)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	if opts.MaxOutputTokens != nil && *opts.MaxOutputTokens > 0 {
		payload["max_tokens"] = *opts.MaxOutputTokens
	}
	if strings.TrimSpace(opts.ReasoningEffort) != "" {
		payload["reasoning"] = map[string]any{"effort": opts.ReasoningEffort}
	}
	if opts.StructuredSchema != nil {
		payload["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   coalesce(opts.StructuredSchemaName, "structured"),
				"strict": opts.StructuredStrict,
				"schema": opts.StructuredSchema,
			},
		}
	} else {
		payload["response_format"] = map[string]any{"type": "json_object"}
	}
	applyTuningFromEnv(payload, cfg.Kind == providerOpenRouter)

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	cfg.apply(req.Header)

	client := &http.Client{Timeout: 45 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	body := buf.Bytes()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm http %d: %s", resp.StatusCode, truncate(string(body), 800))
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &cc); err != nil {
		return "", err
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return cc.Choices[0].Message.Content, nil
}

// ChooseAction asks the model for one action given obs. The raw model text
// is returned alongside for logging, also on error.
func ChooseAction(ctx context.Context, model string, obs agent.Observation, opts PingOptions) (engine.Action, string, error) {
	if len(obs.Legal) == 0 {
		return nil, "", errors.New("no legal actions")
	}
	amount := map[string]any{
		"type":        []any{"integer", "null"},
		"description": "Signed carrot delta for exchange_carrots; null otherwise",
	}
	if len(obs.ExchangeOptions) > 0 {
		enum := []any{nil}
		for _, v := range obs.ExchangeOptions {
			enum = append(enum, v)
		}
		amount["enum"] = enum
	}
	opts.StructuredSchema = map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        obs.Legal,
				"description": "One of the legal actions",
			},
			"amount": amount,
		},
		"required": []string{"action", "amount"},
	}
	opts.StructuredSchemaName = coalesce(opts.StructuredSchemaName, "carrot_action")
	opts.StructuredStrict = true

	user, err := json.Marshal(obs)
	if err != nil {
		return nil, "", err
	}
	text, err := PingTextWithOpts(ctx, model, System, string(user), opts)
	if err != nil {
		return nil, text, err
	}

	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, raw, errors.New("empty response")
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		cleaned := extractJSONObject(raw)
		if cleaned == "" {
			return nil, raw, err
		}
		if err2 := json.Unmarshal([]byte(cleaned), &parsed); err2 != nil {
			return nil, raw, err
		}
	}
	in, ok := coerceAction(parsed)
	if !ok {
		return nil, raw, errors.New("no valid action in response")
	}
	if err := agent.Validate(obs, in); err != nil {
		return nil, raw, err
	}
	a, err := in.ToEngine()
	return a, raw, err
}

// coerceAction reads the loose shapes models produce ("amount": "10",
// "amount": 10.0, aliases) into the wire form.
func coerceAction(parsed map[string]any) (agent.ActionIn, bool) {
	var in agent.ActionIn
	v, ok := parsed["action"].(string)
	if !ok {
		return in, false
	}
	in.Action = strings.ToLower(strings.TrimSpace(v))
	switch in.Action {
	case "exchange", "carrots", "take_carrots":
		in.Action = string(engine.KindExchangeCarrots)
	case "eat", "salad":
		in.Action = string(engine.KindEatSalad)
	}
	if in.Action == string(engine.KindEatSalad) {
		return in, true
	}

	switch t := parsed["amount"].(type) {
	case float64:
		if t != float64(int(t)) {
			return in, false
		}
		n := int(t)
		in.Amount = &n
	case json.Number:
		n64, err := t.Int64()
		if err != nil {
			return in, false
		}
		n := int(n64)
		in.Amount = &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return in, false
		}
		in.Amount = &n
	}
	return in, in.Amount != nil
}

// EnvOptions returns the options configured through the environment.
func EnvOptions() PingOptions {
	opts := PingOptions{}
	preferOpenRouter := preferOpenRouterEnv()
	if v := envWithFallback(preferOpenRouter, "OPENAI_REASONING_EFFORT", "OPENROUTER_REASONING_EFFORT"); v != "" {
		opts.ReasoningEffort = v
	}
	if v := envWithFallback(preferOpenRouter, "OPENAI_MAX_OUTPUT_TOKENS", "OPENROUTER_MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxOutputTokens = &n
		}
	}
	return opts
}

func applyTuningFromEnv(m map[string]any, preferOpenRouter bool) {
	if v := envWithFallback(preferOpenRouter, "OPENAI_TEMPERATURE", "OPENROUTER_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			m["temperature"] = f
		}
	}
	if v := envWithFallback(preferOpenRouter, "OPENAI_TOP_P", "OPENROUTER_TOP_P"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			m["top_p"] = f
		}
	}
}

func envWithFallback(preferOpenRouter bool, openAIKey, openRouterKey string) string {
	keys := []string{openAIKey, openRouterKey}
	if preferOpenRouter {
		keys[0], keys[1] = keys[1], keys[0]
	}
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func coalesce(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}
