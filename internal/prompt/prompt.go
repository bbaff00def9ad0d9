// Package prompt builds the stage instructions and parses provider
// output into email artifacts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/yellowcircle/outreach-engine/internal/brand"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

// Stage instructions. Follow-up instructions read the same in both
// voices, so the table below maps several stage/mode pairs onto one
// body.
const (
	initialInstruction = `Write an initial cold email (Day 0) for this prospect. Keep it under 150 words.`

	followup1Instruction = `Write follow-up #1 (Day 3). Reference the previous email without repeating it. Add value with a diagnostic question. Under 100 words.`

	followup2Instruction = `Write final follow-up (Day 10). Acknowledge this is the last touch, offer resources, leave door open. Under 80 words.`

	singleInstruction = `Write a single standalone outreach email for this prospect. It is the only touch they will receive, so include one clear ask. Keep it under 150 words.`
)

type templateKey struct {
	stage core.Stage
	mode  core.Mode
}

var instructions = map[templateKey]string{
	{core.StageInitial, core.ModeProspect}:   initialInstruction,
	{core.StageInitial, core.ModeMarcom}:     initialInstruction,
	{core.StageFollowup1, core.ModeProspect}: followup1Instruction,
	{core.StageFollowup1, core.ModeMarcom}:   followup1Instruction,
	{core.StageFollowup2, core.ModeProspect}: followup2Instruction,
	{core.StageFollowup2, core.ModeMarcom}:   followup2Instruction,
	{core.StageSingle, core.ModeProspect}:    singleInstruction,
}

// Instruction returns the stage instruction for a stage/mode pair. The
// single stage has no marcom variant and falls back to the prospect
// voice.
func Instruction(stage core.Stage, mode core.Mode) (string, error) {
	if s, ok := instructions[templateKey{stage, mode}]; ok {
		return s, nil
	}
	if s, ok := instructions[templateKey{stage, core.ModeProspect}]; ok {
		return s, nil
	}
	return "", fmt.Errorf("no instruction for stage %q mode %q", stage, mode)
}

// SystemPrompt derives the writing-voice preamble from the brand
// config. The voice block is the only part that changes with the mode.
func SystemPrompt(b brand.Config, mode core.Mode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are writing %s for %s, %s", audience(mode), b.Sender.Name, b.Sender.Title)
	if strings.TrimSpace(b.Name) != "" {
		fmt.Fprintf(&sb, " at %s", b.Name)
	}
	sb.WriteString(".\n\n")

	sb.WriteString(voiceBlock(mode))

	creds := strings.TrimSpace(b.Credentials)
	if creds == "" {
		creds = "- Experienced professional in their field"
	}
	sb.WriteString("\n**CREDENTIALS (use sparingly):**\n")
	sb.WriteString(creds)
	sb.WriteString("\n")

	sb.WriteString(`
**FRAMEWORK (3-part structure):**
1. Who you are (1 sentence)
2. Why reaching out (specific trigger)
3. Why they should care (value prop + easy ask)

**RULES:**
- Never use "I hope this finds you well" or similar
- No corporate jargon
- One clear CTA
- Reference specific trigger when provided
`)
	if name := b.SignOffName(); name != "" {
		fmt.Fprintf(&sb, "- Sign off as \"- %s\"\n", name)
	}
	return sb.String()
}

func audience(mode core.Mode) string {
	if mode == core.ModeMarcom {
		return "marketing-communications emails"
	}
	return "cold outreach emails"
}

func voiceBlock(mode core.Mode) string {
	if mode == core.ModeMarcom {
		return `**VOICE:**
- Warm and on-brand, never pushy
- Speaks for the company, not an individual seller
- Benefit-led, concrete, zero hype words
- Under 150 words for initial, under 100 for follow-ups
`
	}
	return `**VOICE:**
- Direct, no fluff
- Peer-to-peer (not salesy)
- Specific and credible
- Under 150 words for initial, under 100 for follow-ups
`
}

// UserPrompt renders the prospect block, the stage instruction, and
// the JSON-only output requirement.
func UserPrompt(p core.Prospect, instruction string) string {
	var sb strings.Builder
	sb.WriteString("PROSPECT:\n")
	fmt.Fprintf(&sb, "- Company: %s\n", p.Company)
	fmt.Fprintf(&sb, "- Name: %s\n", p.FullName())
	fmt.Fprintf(&sb, "- Title: %s\n", orUnknown(p.Title))
	fmt.Fprintf(&sb, "- Industry: %s\n", orUnknown(p.Industry))
	fmt.Fprintf(&sb, "- Trigger: %s\n", orNone(string(p.Trigger)))
	fmt.Fprintf(&sb, "- Trigger Details: %s\n", orNone(p.TriggerDetails))
	sb.WriteString("\nTASK: ")
	sb.WriteString(instruction)
	sb.WriteString("\n\nReturn ONLY a JSON object with this exact format:\n")
	sb.WriteString(`{"subject": "subject line here", "body": "email body here"}`)
	return sb.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return strings.TrimSpace(s)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" || s == string(core.TriggerNone) {
		return "None"
	}
	return strings.TrimSpace(s)
}

// Build assembles the system and user prompts for one stage of a run.
func Build(b brand.Config, p core.Prospect, stage core.Stage, mode core.Mode) (system, user string, err error) {
	instr, err := Instruction(stage, mode)
	if err != nil {
		return "", "", err
	}
	return SystemPrompt(b, mode), UserPrompt(p, instr), nil
}
