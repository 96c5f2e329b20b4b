package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Intent is the structured result of interpreting a speech transcript
type Intent struct {
	Action           string `json:"action"`
	Device           string `json:"device"`
	AssistantMessage string `json:"assistant_message"`
	FollowUp         string `json:"follow_up"`
}

// Recognized intent actions
const (
	ActionTurnOn  = "turn_on"
	ActionTurnOff = "turn_off"
	ActionNone    = "none"
)

const intentPrompt = "You are Omi, a helpful smart-home assistant. " +
	"Given a user's speech transcript, decide if they want to control the coffee machine or room light. " +
	"Respond with strict JSON containing: action ('turn_on', 'turn_off', or 'none'), device ('coffee machine', 'room light', or ''), " +
	"assistant_message (what you will say back to the user), and follow_up (any short suggestion or question). " +
	"Infer intent even if indirect (e.g., tired -> coffee machine on, too dark -> room light on). " +
	"If unsure, set action to 'none' and ask a clarifying question."

// deviceKeywords maps free-text device mentions to canonical labels
var deviceKeywords = []struct {
	keyword   string
	canonical string
}{
	{"coffee machine", "coffee machine"},
	{"coffee", "coffee machine"},
	{"room light", "room light"},
	{"light", "room light"},
	{"lamp", "room light"},
}

// InferIntent converts a transcript into a structured intent via the LLM
func (c *Client) InferIntent(ctx context.Context, transcript string) (*Intent, error) {
	raw, err := c.CompleteJSON(ctx, intentPrompt, transcript, nil)
	if err != nil {
		return nil, err
	}

	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, fmt.Errorf("failed to parse intent response: %w", err)
	}

	switch intent.Action {
	case ActionTurnOn, ActionTurnOff, ActionNone:
	default:
		intent.Action = ActionNone
	}

	return &intent, nil
}

// ResolveDeviceName maps a free-text device name to a supported label,
// returning "" when unrecognized
func ResolveDeviceName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return ""
	}
	for _, entry := range deviceKeywords {
		if strings.Contains(name, entry.keyword) {
			return entry.canonical
		}
	}
	return ""
}
