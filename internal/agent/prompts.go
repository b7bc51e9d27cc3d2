package agent

import (
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/sequence"
)

// correctiveInstruction is sent once after an unreadable reply.
const correctiveInstruction = `I couldn't understand the format of your previous response. Respond with ONLY a JSON object with exactly two string fields, "action" and "action_input", and no other text.`

// BuildSystemPrompt lists the available actions and the reply contract.
func BuildSystemPrompt(agentName string, defs []ActionDef) string {
	agentName = displayName(agentName)
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI-powered recruiting outreach agent. ", agentName)
	b.WriteString("Your goal is to help HR professionals create effective recruiting sequences and manage candidate outreach.\n\n")

	b.WriteString("Available tools:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}

	b.WriteString("\nIMPORTANT INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "1. You MUST use one of these exact tool names: %s\n", strings.Join(names, ", "))
	b.WriteString("2. You MUST respond with ONLY a JSON object\n")
	b.WriteString("3. The JSON object MUST have exactly these fields:\n")
	b.WriteString("   - \"action\": one of the tool names listed above\n")
	b.WriteString("   - \"action_input\": the input string for the chosen tool. Structured input is a JSON document encoded as a string.\n")
	b.WriteString("4. Do not include ANY other text before or after the JSON\n")
	b.WriteString("5. When editing a sequence step, ALWAYS use the tool name \"edit_sequence_step\", NOT \"modify_sequence_step\"\n")

	b.WriteString("\nExample valid responses:\n")
	b.WriteString(`{"action": "generate_sequence", "action_input": "Create a sequence for a senior software engineer role"}` + "\n")
	b.WriteString(`{"action": "ask_clarifying_question", "action_input": "What industry is this role in?"}` + "\n")
	b.WriteString(`{"action": "edit_sequence_step", "action_input": "{\"step_id\": \"1\", \"new_content\": \"Updated message content\"}"}` + "\n")

	b.WriteString("\nRemember: ONLY return the JSON object, nothing else.")
	return b.String()
}

// BuildHumanPrompt renders the conversation so far, the current sequence
// and the new request.
func BuildHumanPrompt(agentName string, history []domain.ChatMessage, steps []domain.SequenceStep, message string) string {
	return fmt.Sprintf("Current conversation:\n%s\n\nCurrent sequence:\n%s\n\nUser request: %s",
		FormatHistory(agentName, history), sequence.FormatSteps(steps), message)
}

// FormatHistory renders a transcript one message per line, labelling agent
// lines with agentName.
func FormatHistory(agentName string, history []domain.ChatMessage) string {
	if len(history) == 0 {
		return "No previous messages."
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := displayName(agentName)
		if m.Sender == domain.SenderUser {
			who = "Human"
		}
		lines = append(lines, who+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

func displayName(agentName string) string {
	if agentName == "" {
		return "Helix"
	}
	return agentName
}
