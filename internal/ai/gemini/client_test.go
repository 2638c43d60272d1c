package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// scriptedChats answers each chat with the next scripted reply and keeps
// what the generator sent.
type scriptedChats struct {
	mu      sync.Mutex
	replies []scriptedReply
	sent    []sentChat
}

type scriptedReply struct {
	parts []string
	err   error
}

type sentChat struct {
	model  string
	system string
	text   []string
}

type scriptedSession struct {
	owner *scriptedChats
	index int
	reply scriptedReply
}

func (s *scriptedSession) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	s.owner.mu.Lock()
	for _, p := range parts {
		s.owner.sent[s.index].text = append(s.owner.sent[s.index].text, p.Text)
	}
	s.owner.mu.Unlock()

	if s.reply.err != nil {
		return nil, s.reply.err
	}
	content := &genai.Content{}
	for _, text := range s.reply.parts {
		content.Parts = append(content.Parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}, nil
}

func (c *scriptedChats) Create(_ context.Context, model string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sent) >= len(c.replies) {
		return nil, errors.New("no scripted reply left")
	}

	chat := sentChat{model: model}
	if config != nil && config.SystemInstruction != nil {
		chat.system = config.SystemInstruction.Parts[0].Text
	}
	c.sent = append(c.sent, chat)

	idx := len(c.sent) - 1
	return &scriptedSession{owner: c, index: idx, reply: c.replies[idx]}, nil
}

func (c *scriptedChats) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func serverError() error {
	return genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()

	var waits []time.Duration
	original := sleep
	sleep = func(d time.Duration) { waits = append(waits, d) }
	t.Cleanup(func() { sleep = original })
	return &waits
}

func TestDigestSurvivesServerError(t *testing.T) {
	waits := stubSleep(t)

	chats := &scriptedChats{replies: []scriptedReply{
		{err: serverError()},
		{parts: []string{`{"subject": "2 new Go jobs in Pune",`, `"body": "- Go Developer 0 at Acme\n- Go Developer 1 at Acme"}`}},
	}}
	g := &Generator{chats: chats, model: defaultModel, maxRetries: 3, logger: zap.NewNop()}

	req := request(2)
	digest, err := NewDigestWriter(g, 0, nil).WriteDigest(context.Background(), req)
	if err != nil {
		t.Fatalf("write digest: %v", err)
	}

	if digest.Subject != "2 new Go jobs in Pune" || !strings.Contains(digest.Body, "Go Developer 1 at Acme") {
		t.Fatalf("unexpected digest: %+v", digest)
	}
	if len(*waits) != 1 || (*waits)[0] != retryBaseDelay {
		t.Fatalf("expected a single backoff of %s, got %v", retryBaseDelay, *waits)
	}

	wantSystem := strings.TrimSpace(buildPrompt(req, PromptOverrides{}))
	if chats.count() != 2 {
		t.Fatalf("expected 2 chats, got %d", chats.count())
	}
	for i, chat := range chats.sent {
		if chat.model != defaultModel {
			t.Fatalf("chat %d: unexpected model %q", i, chat.model)
		}
		if chat.system != wantSystem {
			t.Fatalf("chat %d: system instruction is not the digest prompt:\n%s", i, chat.system)
		}
		if len(chat.text) != 1 {
			t.Fatalf("chat %d: expected one message, got %d", i, len(chat.text))
		}

		var items []map[string]string
		if err := json.Unmarshal([]byte(chat.text[0]), &items); err != nil {
			t.Fatalf("chat %d: listings payload is not JSON: %v", i, err)
		}
		if len(items) != 2 || items[1]["title"] != "Go Developer 1" || items[1]["source"] != "naukri" {
			t.Fatalf("chat %d: unexpected listings payload: %+v", i, items)
		}
	}
}

func TestDigestFailsWhenRetriesRunOut(t *testing.T) {
	waits := stubSleep(t)

	chats := &scriptedChats{replies: []scriptedReply{{err: serverError()}, {err: serverError()}, {err: serverError()}}}
	g := &Generator{chats: chats, model: defaultModel, maxRetries: 3, logger: zap.NewNop()}

	if _, err := NewDigestWriter(g, 0, nil).WriteDigest(context.Background(), request(1)); err == nil {
		t.Fatal("expected the digest to fail")
	}
	if chats.count() != 3 {
		t.Fatalf("expected 3 attempts, got %d", chats.count())
	}
	if len(*waits) != 2 || (*waits)[0] != retryBaseDelay || (*waits)[1] != 2*retryBaseDelay {
		t.Fatalf("expected linear backoff between attempts, got %v", *waits)
	}
}

func TestGeneratorQuotaErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int
	}{
		{
			name:     "asks to wait briefly",
			err:      genai.APIError{Code: http.StatusTooManyRequests, Details: []map[string]any{{"retryDelay": "3s"}}},
			attempts: 2,
		},
		{
			name:     "asks to wait too long",
			err:      genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: "quota exhausted, retry after 60 seconds"},
			attempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubSleep(t)

			chats := &scriptedChats{replies: []scriptedReply{{err: tt.err}, {parts: []string{`{"body": "- Go Developer 0 at Acme"}`}}}}
			g := &Generator{chats: chats, model: defaultModel, maxRetries: 3, logger: zap.NewNop()}

			_, err := g.GenerateContent(context.Background(), "digest", `[{"title": "Go Developer 0"}]`)
			if tt.attempts == 1 && err == nil {
				t.Fatal("expected the quota error to be returned")
			}
			if tt.attempts > 1 && err != nil {
				t.Fatalf("expected the retry to succeed, got %v", err)
			}
			if chats.count() != tt.attempts {
				t.Fatalf("expected %d attempts, got %d", tt.attempts, chats.count())
			}
		})
	}
}

func TestGeneratorSkipsBlankSystemInstruction(t *testing.T) {
	t.Parallel()

	chats := &scriptedChats{replies: []scriptedReply{{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}}}}
	g := &Generator{chats: chats, model: defaultModel, maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "  \n", `[{"title": "Go Developer 0"}]`); err == nil {
		t.Fatal("expected the client error to be returned")
	}
	if chats.count() != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", chats.count())
	}
	if chats.sent[0].system != "" {
		t.Fatalf("blank system instruction must not be sent, got %q", chats.sent[0].system)
	}
}

func TestGeneratorRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	chats := &scriptedChats{}
	g := &Generator{chats: chats, model: defaultModel, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "digest", " "); err == nil {
		t.Fatal("expected an error for an empty payload")
	}
	if chats.count() != 0 {
		t.Fatalf("nothing must be sent, got %d chats", chats.count())
	}

	var missing *Generator
	if _, err := missing.GenerateContent(context.Background(), "digest", "[]"); err == nil {
		t.Fatal("expected an error from an uninitialized generator")
	}
}

func TestResponseText(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		nil,
		{Content: &genai.Content{Parts: []*genai.Part{{Text: "```json"}, nil, {Text: "  "}}}},
		{Content: &genai.Content{Parts: []*genai.Part{{Text: `{"body": "- Go Developer 0"}`}, {Text: "```"}}}},
	}}

	text, err := responseText(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "```json\n{\"body\": \"- Go Developer 0\"}\n```" {
		t.Fatalf("unexpected text %q", text)
	}

	digest, err := parseResponse(text)
	if err != nil || digest.Body != "- Go Developer 0" {
		t.Fatalf("fenced answer must still parse, got %+v, %v", digest, err)
	}

	if _, err := responseText(&genai.GenerateContentResponse{}); err == nil {
		t.Fatal("expected an error for a response without text")
	}
	if _, err := responseText(nil); err == nil {
		t.Fatal("expected an error for a nil response")
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		attempt int
		delay   time.Duration
		retry   bool
	}{
		{name: "not an api error", err: errors.New("connection reset"), attempt: 1},
		{name: "bad request", err: genai.APIError{Code: http.StatusBadRequest}, attempt: 1},
		{name: "server error backs off by attempt", err: serverError(), attempt: 3, delay: 3 * retryBaseDelay, retry: true},
		{name: "wrapped server error", err: wrapped(serverError()), attempt: 1, delay: retryBaseDelay, retry: true},
		{name: "quota delay from details", err: genai.APIError{
			Code:    http.StatusTooManyRequests,
			Details: []map[string]any{{"retryDelay": "7s"}},
		}, attempt: 1, delay: 7 * time.Second, retry: true},
		{name: "quota delay from message", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 2.5s."}, attempt: 1, delay: 2500 * time.Millisecond, retry: true},
		{name: "quota without a hint", err: genai.APIError{Code: http.StatusTooManyRequests}, attempt: 2, delay: 2 * retryBaseDelay, retry: true},
		{name: "quota delay over the limit", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "retry after 45 seconds"}, attempt: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			delay, retry := retryDelay(tt.err, tt.attempt)
			if delay != tt.delay || retry != tt.retry {
				t.Fatalf("expected (%s, %v), got (%s, %v)", tt.delay, tt.retry, delay, retry)
			}
		})
	}
}

func wrapped(err error) error {
	return errors.Join(errors.New("generate content"), err)
}
