package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/model"
)

const scriptSystemPrompt = `You are a podcast script writer. Write a 3-5 minute conversational
podcast between two hosts:
- Alex: curious, asks good questions, uses analogies
- Sam: the expert, explains things clearly, occasionally funny

Rules:
- Make it feel natural, not like a lecture
- Include a short intro and sign-off
- Keep it to 8-12 exchanges total
- Format output as a JSON array:
  [{"speaker": "Alex", "text": "..."}, {"speaker": "Sam", "text": "..."}, ...]
- Return ONLY the JSON array, no other text.`

var toneGuidance = map[model.Tone]string{
	model.ToneCasual:   "relaxed and friendly, like two friends chatting over coffee",
	model.ToneAcademic: "precise and well structured, citing concepts by name while staying accessible",
	model.ToneComedic:  "playful, with running jokes and light banter that never loses the facts",
}

// ScriptService turns a research brief into an ordered two-host dialogue
type ScriptService struct {
	generator client.ScriptGenerator
	validate  *validator.Validate
}

// NewScriptService creates a new script service
func NewScriptService(generator client.ScriptGenerator, validate *validator.Validate) *ScriptService {
	return &ScriptService{
		generator: generator,
		validate:  validate,
	}
}

// Generate asks the chat provider for a script and parses it
func (s *ScriptService) Generate(ctx context.Context, topic, brief string, tone model.Tone) ([]model.ScriptLine, error) {
	if s.generator == nil || !s.generator.IsConfigured() {
		return nil, &model.ConfigurationError{Setting: "minimax.api_key", Message: "script provider not configured"}
	}

	response, err := s.generator.ChatCompletion(ctx, scriptSystemPrompt, s.buildUserPrompt(topic, brief, tone))
	if err != nil {
		return nil, fmt.Errorf("script generation failed: %w", err)
	}

	lines, err := s.ParseScript(response)
	if err != nil {
		return nil, err
	}

	log.Printf("[Script] generated %d dialogue lines for %q", len(lines), topic)
	return lines, nil
}

func (s *ScriptService) buildUserPrompt(topic, brief string, tone model.Tone) string {
	if tone == "" {
		tone = model.ToneCasual
	}
	guidance := toneGuidance[tone]

	return fmt.Sprintf(`Topic: %s
Tone: %s (%s)
Research Brief:
%s

Generate the podcast script now as a JSON array.`, topic, tone, guidance, brief)
}

type rawScriptLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ParseScript normalizes a model response and validates it as an ordered
// list of {speaker, text} turns. Any deviation yields a *model.ParseError.
func (s *ScriptService) ParseScript(response string) ([]model.ScriptLine, error) {
	text := stripFences(response)

	var raw []rawScriptLine
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		arr, ok := extractJSONArray(text)
		if !ok {
			return nil, &model.ParseError{Reason: "no JSON array in response", Err: err}
		}
		if err := json.Unmarshal([]byte(arr), &raw); err != nil {
			return nil, &model.ParseError{Reason: "invalid JSON array", Err: err}
		}
	}
	if len(raw) == 0 {
		return nil, &model.ParseError{Reason: "script is empty"}
	}

	lines := make([]model.ScriptLine, 0, len(raw))
	for i, r := range raw {
		speaker, ok := model.ParseSpeaker(r.Speaker)
		if !ok {
			return nil, &model.ParseError{Reason: fmt.Sprintf("line %d: unknown speaker %q", i, r.Speaker)}
		}
		line := model.ScriptLine{Speaker: speaker, Text: strings.TrimSpace(r.Text)}
		if err := s.validate.Struct(line); err != nil {
			return nil, &model.ParseError{Reason: fmt.Sprintf("line %d", i), Err: err}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// PlaceholderScript is the fixed two-line script used when generation fails
func PlaceholderScript(topic string) []model.ScriptLine {
	return []model.ScriptLine{
		{Speaker: model.SpeakerAlex, Text: fmt.Sprintf("Hey Sam, today we're diving into %s. I've been really curious about this!", topic)},
		{Speaker: model.SpeakerSam, Text: fmt.Sprintf("Yeah, %s is fascinating. Let me break it down for you.", topic)},
	}
}

// stripFences removes a surrounding markdown code fence, with or without a language tag
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 && !strings.ContainsAny(s[:nl], "[{") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONArray returns the outermost [...] span of s
func extractJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
