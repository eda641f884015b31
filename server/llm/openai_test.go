package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"carrot-arena/server/agent"
	"carrot-arena/server/engine"
)

// fakeChat answers every chat/completions call with content and records the
// last request payload.
func fakeChat(t *testing.T, content string, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected Authorization %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&last)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_BASE", srv.URL)
	return srv, &last
}

func observation(rules engine.Rules) agent.Observation {
	s := engine.NewGame(engine.DefaultBoard(), []engine.Player{
		{Team: engine.One, Position: 2, Carrots: 20, Salads: 1},
		{Team: engine.Two, Position: 5, Carrots: 20, Salads: 1},
	}, rules)
	return agent.BuildObservation("g", s)
}

func TestChooseActionExchange(t *testing.T) {
	_, last := fakeChat(t, `{"action":"exchange_carrots","amount":10}`, http.StatusOK)
	a, raw, err := ChooseAction(context.Background(), "gpt-test", observation(engine.HaseRules()), PingOptions{})
	if err != nil {
		t.Fatalf("ChooseAction: %v (raw %q)", err, raw)
	}
	if a != engine.NewExchangeCarrots(10) {
		t.Fatalf("unexpected action %v", a)
	}
	rf := (*last)["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("expected structured output, got %v", rf)
	}
	if (*last)["model"] != "gpt-test" {
		t.Fatalf("unexpected model %v", (*last)["model"])
	}
}

func TestChooseActionLooseShapes(t *testing.T) {
	_, _ = fakeChat(t, "Sure! ```{\"action\":\"EXCHANGE\",\"amount\":\"-3\"}```", http.StatusOK)
	a, _, err := ChooseAction(context.Background(), "gpt-test", observation(engine.DefaultRules()), PingOptions{})
	if err != nil {
		t.Fatalf("ChooseAction: %v", err)
	}
	if a != engine.NewExchangeCarrots(-3) {
		t.Fatalf("unexpected action %v", a)
	}
}

func TestChooseActionEatSalad(t *testing.T) {
	_, _ = fakeChat(t, `{"action":"eat_salad","amount":null}`, http.StatusOK)
	a, _, err := ChooseAction(context.Background(), "gpt-test", observation(engine.DefaultRules()), PingOptions{})
	if err != nil {
		t.Fatalf("ChooseAction: %v", err)
	}
	if a != engine.NewEatSalad() {
		t.Fatalf("unexpected action %v", a)
	}
}

func TestChooseActionRejectsIllegal(t *testing.T) {
	cases := []string{
		`{"action":"exchange_carrots","amount":7}`, // hase rules only allow ±10
		`{"action":"exchange_carrots","amount":null}`,
		`{"action":"move","amount":3}`,
		`not json at all`,
	}
	for _, content := range cases {
		_, _ = fakeChat(t, content, http.StatusOK)
		if a, _, err := ChooseAction(context.Background(), "gpt-test", observation(engine.HaseRules()), PingOptions{}); err == nil {
			t.Fatalf("%s: expected error, got %v", content, a)
		}
	}
}

func TestChooseActionHTTPError(t *testing.T) {
	_, _ = fakeChat(t, "", http.StatusTooManyRequests)
	if _, _, err := ChooseAction(context.Background(), "gpt-test", observation(engine.DefaultRules()), PingOptions{}); err == nil {
		t.Fatalf("expected http error")
	}
}

func TestCoerceAction(t *testing.T) {
	in, ok := coerceAction(map[string]any{"action": "exchange_carrots", "amount": 2.5})
	if ok {
		t.Fatalf("fractional amount accepted: %+v", in)
	}
	in, ok = coerceAction(map[string]any{"action": "salad", "amount": 4.0})
	if !ok || in.Action != "eat_salad" || in.Amount != nil {
		t.Fatalf("unexpected coercion %+v %v", in, ok)
	}
}
