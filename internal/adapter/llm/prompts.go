package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// Prompt is a template paired with its system context.
type Prompt struct {
	System   string
	Template string
}

const visionSystemContext = `You are a knowledge-worker context analyzer. Your role is to observe and understand
what the knowledge-worker is working on from their screen content. Focus on:
1. Identifying the type of activity
2. Technical stack and tools in use
3. Relevant documentation or resources visible
Provide structured, accurate analysis without any subjective interpretation.`

const screenActivitySchema = `- main_topic (string): the project or subject the user is focused on
- activity (string): what the user is doing, e.g. coding, reading, reviewing, meeting
- summary (string): one or two sentences describing the screen
- notes (string): anything worth remembering for later
- resources (list of strings): URLs, documents or files visible on screen
- is_learning_moment (bool): whether the user appears to be learning something new
- learning_observations (list of strings): what is being learned, if anything`

// ScreenActivityPrompt asks a vision model for a screen-activity observation.
// The template takes the work context and the previous observation.
var ScreenActivityPrompt = Prompt{
	System: visionSystemContext,
	Template: `In the following context:
%s
Given the following information about the previous screen capture:
%s
Focusing on new information only, do not repeat previously known info, analyze this screenshot
and format the response as a JSON object with these exact keys:
` + screenActivitySchema + `

Note:
    - DO NOT make up any information.
    - DO NOT output a markdown block of json, just the json ONLY.
    - If you cannot identify any new information, set the value to null.
    - If you cannot identify a field, set the value to null or an appropriate empty value.`,
}

const (
	noContext  = "(no context given)"
	noPrevious = "(no previous capture)"
)

// BuildAnalyzePrompt renders the screen-activity prompt for a frame.
func BuildAnalyzePrompt(frame domain.RawFrame) string {
	workContext := strings.TrimSpace(frame.Context)
	if workContext == "" {
		workContext = noContext
	}
	previous := noPrevious
	if len(frame.Previous) > 0 {
		previous = compactJSON(frame.Previous)
	}
	return fmt.Sprintf(ScreenActivityPrompt.Template, workContext, previous)
}

// SessionSummaryPrompt asks a text model to synthesize a session summary.
var SessionSummaryPrompt = Prompt{
	System: `You summarize a knowledge-worker's session from a chronological list of screen observations.
Be concise and factual. Only use information present in the observations.`,
	Template: `The following %d observations were captured during one work session, oldest first:

%s

Write a short summary of the session: the main topics, what was accomplished,
the resources used, and any learning moments. Plain text, no markdown headings.`,
}

// BuildSummaryPrompt renders the summary prompt for the given payloads.
func BuildSummaryPrompt(payloads []json.RawMessage) string {
	var b strings.Builder
	for i, p := range payloads {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, compactJSON(p))
	}
	return fmt.Sprintf(SessionSummaryPrompt.Template, len(payloads), strings.TrimRight(b.String(), "\n"))
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
