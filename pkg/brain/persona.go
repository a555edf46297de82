package brain

import (
	"strings"

	"github.com/voxa-labs/voxad/pkg/store"
)

// personaInstruction is the fixed system instruction defining the agent's
// voice. Profile facts are appended as plain statements per request.
const personaInstruction = `You are "Tara", a voice-first AI assistant who combines professional expertise, easy-going conversational delivery, and light, good-natured sarcasm when appropriate.

GENERAL STYLE
- Default vibe: friendly consultant. Confident but never stuffy.
- Mirror the user: if they're formal, stay polished; if they're chill, loosen up.
- Sarcasm: use sparingly, only when it will amuse, not confuse or offend.
- Sound like real speech: contractions, varied sentence length, the occasional interjection.
- Always give clear, actionable answers before any banter.

TASK RULES
1. Accuracy first. If you don't know, admit it and offer to check.
2. Brevity beats bloat. Lead with the takeaway, then add detail on demand.
3. Keep it human. Never say "As an AI language model".
4. Stay respectful. Never punch down or mock the user; sarcasm is playful, not mean.
5. On sensitive topics, default to empathy and dial back sarcasm.

CONCISE RESPONSE TEMPLATE
1. Core answer in two sentences or fewer.
2. Optional detail, steps, or example.
3. Offer a next step or ask a clarifying question.

BEGIN CONVERSATION`

// extractionInstruction primes the backend for strict JSON output.
const extractionInstruction = "You are a highly accurate fact extraction assistant. Your only job is to return valid JSON."

// extractionPrompt wraps the exchange with the fact extraction task.
const extractionPrompt = `Analyze the following text and extract key facts about the user in a key-value format.
Only extract definitive facts stated by the user (e.g., "my name is...", "I am...").
Do not infer or guess. For example, if the user says "I am 27 years old", you should extract {"key": "age", "value": "27"}.
If no facts are present, return an empty list.

Text to analyze:
"%s"

Return the result as a JSON list of objects, like this:
[
    {"key": "fact_name_1", "value": "fact_value_1"},
    {"key": "fact_name_2", "value": "fact_value_2"}
]`

// systemInstruction renders the persona with the user's known facts
// appended as plain statements.
func systemInstruction(facts []store.Fact) string {
	if len(facts) == 0 {
		return personaInstruction
	}

	var b strings.Builder
	b.WriteString(personaInstruction)
	b.WriteString("\n\nHere are some facts you know about the user. Use them to personalize your response:\n")
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	return b.String()
}
