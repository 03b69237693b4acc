// Package transcribe turns voice memos into structured care plan rows. Audio
// goes through a speech-to-text endpoint first and the transcript is then
// parsed by an OpenAI-compatible chat model in JSON mode.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"care-planner/internal/timeofday"
)

// impliedMinutes is the length given to an extracted task that has a start
// but no end.
const impliedMinutes = 30

const extractPrompt = `You are a helpful assistant. Each user input is the transcript of a voice message
containing instructions and questions for a health aide. An instruction might have a start time and/or an
end time. Reply with a single JSON object of this shape and nothing else:
{"tasks":[{"content":"...","start_time":{"hour":0,"minute":0}|null,"end_time":{"hour":0,"minute":0}|null}],
 "questions":["..."]}
Hours are 0-23 and minutes 0-59. Use null when a time is not mentioned.`

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("model returned no content")

// Task is a task extracted from a voice memo. EndImplied is set when the
// memo gave no usable end and EndTime is StartTime plus half an hour.
type Task struct {
	Content    string
	StartTime  *timeofday.Time
	EndTime    *timeofday.Time
	EndImplied bool
}

// Transcriber pairs a speech-to-text client with a chat model.
type Transcriber struct {
	speech SpeechToText
	model  llms.Model
}

// New wraps existing clients.
func New(speech SpeechToText, model llms.Model) *Transcriber {
	return &Transcriber{speech: speech, model: model}
}

// NewOpenAI builds a Transcriber over an OpenAI-compatible API: speechModel
// transcribes audio and chatModel extracts rows in JSON response mode. An
// empty baseURL uses the provider default.
func NewOpenAI(apiKey, baseURL, chatModel, speechModel string) (*Transcriber, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(chatModel),
		openai.WithResponseFormat(&openai.ResponseFormat{Type: "json_object"}),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return New(NewWhisperClient(apiKey, baseURL, speechModel), llm), nil
}

type clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type extraction struct {
	Tasks []struct {
		Content   string `json:"content"`
		StartTime *clock `json:"start_time"`
		EndTime   *clock `json:"end_time"`
	} `json:"tasks"`
	Questions []string `json:"questions"`
}

// ExtractTasksAndQuestions finds instructions and questions in an audio memo.
func (t *Transcriber) ExtractTasksAndQuestions(ctx context.Context, audio []byte, mime string) ([]Task, []string, error) {
	transcript, err := t.speech.Transcribe(ctx, audio, mime, "")
	if err != nil {
		return nil, nil, err
	}
	if transcript == "" {
		return []Task{}, []string{}, nil
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, extractPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, transcript),
	}
	content, err := t.generate(ctx, messages)
	if err != nil {
		return nil, nil, err
	}
	return decodeExtraction(content)
}

// TranscribeAnswer transcribes a spoken answer to question. The question is
// handed to the speech model as a vocabulary hint.
func (t *Transcriber) TranscribeAnswer(ctx context.Context, audio []byte, mime, question string) (string, error) {
	return t.speech.Transcribe(ctx, audio, mime, question)
}

func (t *Transcriber) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	resp, err := t.model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func decodeExtraction(content string) ([]Task, []string, error) {
	var raw extraction
	if err := json.Unmarshal([]byte(stripFence(content)), &raw); err != nil {
		return nil, nil, fmt.Errorf("decode extraction: %w", err)
	}

	tasks := make([]Task, 0, len(raw.Tasks))
	for i, item := range raw.Tasks {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		start, err := toTime(item.StartTime)
		if err != nil {
			return nil, nil, fmt.Errorf("task %d start_time: %w", i, err)
		}
		end, err := toTime(item.EndTime)
		if err != nil {
			return nil, nil, fmt.Errorf("task %d end_time: %w", i, err)
		}
		task := Task{Content: content, StartTime: start, EndTime: end}
		if start != nil && (end == nil || !end.After(*start)) {
			implied := start.AddClamped(0, impliedMinutes)
			task.EndTime, task.EndImplied = &implied, true
		}
		tasks = append(tasks, task)
	}

	questions := make([]string, 0, len(raw.Questions))
	for _, q := range raw.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	return tasks, questions, nil
}

func toTime(c *clock) (*timeofday.Time, error) {
	if c == nil {
		return nil, nil
	}
	t, err := timeofday.New(c.Hour, c.Minute)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// stripFence removes a Markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
