package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/ai"
	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed digest.md
var promptTemplate string

const (
	defaultMaxLogLength     = 200
	defaultTone             = "Friendly"
	defaultMaxItems         = 10
	maxUserInstructionRunes = 500
)

// PromptOverrides customizes the digest instructions.
type PromptOverrides struct {
	Tone             string
	UserInstructions string
}

// DigestWriter asks Gemini to summarize the new listings of an alert.
type DigestWriter struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	overrides PromptOverrides
}

func NewDigestWriter(generator contentGenerator, maxLogLength int, logger *zap.Logger) *DigestWriter {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DigestWriter{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (w *DigestWriter) SetPromptOverrides(overrides PromptOverrides) {
	w.overrides = overrides
}

func (w *DigestWriter) WriteDigest(ctx context.Context, req ai.DigestRequest) (*ai.Digest, error) {
	if len(req.Listings) == 0 {
		return nil, errors.New("no listings to summarize")
	}

	listings := req.Listings
	if len(listings) > defaultMaxItems {
		listings = listings[:defaultMaxItems]
	}

	payload, err := json.MarshalIndent(digestItems(listings), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal listings payload: %w", err)
	}

	system := buildPrompt(req, w.overrides)
	message := string(payload)

	w.logger.Debug("gemini digest request",
		zap.String("keywords", req.Keywords),
		zap.Int("listings", len(listings)),
		zap.Int("prompt_length", utf8.RuneCountInString(system)+utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(system, w.maxLogLen)),
	)

	raw, err := w.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("gemini digest response",
		zap.String("keywords", req.Keywords),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, w.maxLogLen)),
	)

	digest, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	digest.Raw = raw

	return digest, nil
}

func digestItems(listings []jobs.JobListing) []map[string]string {
	items := make([]map[string]string, 0, len(listings))
	for _, l := range listings {
		items = append(items, map[string]string{
			"title":    l.Title,
			"company":  l.Company,
			"location": l.Location,
			"salary":   l.Salary,
			"posted":   l.Posted,
			"url":      l.URL,
			"source":   l.Source,
		})
	}
	return items
}

func buildPrompt(req ai.DigestRequest, overrides PromptOverrides) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Alert: {{KEYWORDS}} in {{LOCATION}}\n\nJSON Response:"
	}

	tone := strings.TrimSpace(overrides.Tone)
	if tone == "" {
		tone = defaultTone
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = "anywhere"
	}

	jobType := string(req.JobType)
	if !req.JobType.IsSpecified() {
		jobType = "any"
	}

	replacer := strings.NewReplacer(
		"{{KEYWORDS}}", req.Keywords,
		"{{LOCATION}}", location,
		"{{JOB_TYPE}}", jobType,
		"{{TONE}}", tone,
		"{{MAX_ITEMS}}", strconv.Itoa(defaultMaxItems),
		"{{USER_INSTRUCTIONS}}", sanitizeUserInstructions(overrides.UserInstructions),
	)
	return replacer.Replace(template)
}

// sanitizeUserInstructions renders free-form instructions as an indented
// list. Square brackets are replaced so the text cannot imitate role tags.
func sanitizeUserInstructions(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return "  - none"
	}

	input = strings.NewReplacer("[", "(", "]", ")").Replace(input)
	if runes := []rune(input); len(runes) > maxUserInstructionRunes {
		input = string(runes[:maxUserInstructionRunes])
	}

	var lines []string
	for _, line := range strings.Split(input, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, "  - "+line)
		}
	}
	return strings.Join(lines, "\n")
}

func parseResponse(raw string) (*ai.Digest, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	digest := &ai.Digest{
		Subject: coerceString(data["subject"]),
		Body:    coerceString(data["body"]),
	}
	if digest.Body == "" {
		return nil, errors.New("gemini response has no digest body")
	}

	return digest, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
