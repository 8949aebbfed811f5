package ai

import (
	"encoding/json"
	"strings"

	"service-note-backend/internal/notes"
)

// BuildStepPrompt formats the user input for one interview step.
func BuildStepPrompt(stepID string, answer string, current notes.Fields) (string, error) {
	payload, err := json.MarshalIndent(map[string]any{
		"stepId":  stepID,
		"answer":  answer,
		"current": current,
	}, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("現在のステップ: ")
	b.WriteString(stepID)
	b.WriteString("\n")

	b.WriteString("回答:\n")
	b.WriteString(answer)
	b.WriteString("\n\n")

	b.WriteString("現在のフォーム(JSON):\n")
	b.Write(payload)

	return b.String(), nil
}

// BuildNarrativePrompt formats the fact lines for the formatter.
func BuildNarrativePrompt(destination string, facts string) string {
	var b strings.Builder

	if strings.TrimSpace(destination) != "" {
		b.WriteString("行き先: ")
		b.WriteString(strings.TrimSpace(destination))
		b.WriteString("\n")
	}

	if strings.TrimSpace(facts) != "" {
		b.WriteString(facts)
		b.WriteString("\n")
	}

	return b.String()
}
