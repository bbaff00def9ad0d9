package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/yellowcircle/outreach-engine/internal/brand"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			raw:  `{"subject":"a","body":"b"}`,
			want: `{"subject":"a","body":"b"}`,
			ok:   true,
		},
		{
			name: "prose around the object",
			raw:  "Sure! Here is your email:\n{\"subject\":\"a\",\"body\":\"b\"}\nLet me know if you need edits.",
			want: `{"subject":"a","body":"b"}`,
			ok:   true,
		},
		{
			name: "braces inside string values",
			raw:  `{"subject":"re: {budget}","body":"use {x} and \"}\" here"}`,
			want: `{"subject":"re: {budget}","body":"use {x} and \"}\" here"}`,
			ok:   true,
		},
		{
			name: "nested object",
			raw:  `{"subject":"a","body":"b","meta":{"k":"v"}}`,
			want: `{"subject":"a","body":"b","meta":{"k":"v"}}`,
			ok:   true,
		},
		{
			name: "first of two objects wins",
			raw:  `{"subject":"a","body":"b"} {"subject":"c","body":"d"}`,
			want: `{"subject":"a","body":"b"}`,
			ok:   true,
		},
		{name: "no object", raw: "sorry, I cannot help with that", ok: false},
		{name: "unbalanced", raw: `{"subject":"a"`, ok: false},
		{name: "empty", raw: "", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractJSONObject(tc.raw)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ExtractJSONObject(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestParseArtifact(t *testing.T) {
	t.Parallel()

	art, err := ParseArtifact("here you go\n{\"subject\": \"Quick question\", \"body\": \"Hi Jane\"}", core.StageInitial)
	if err != nil {
		t.Fatalf("ParseArtifact: %v", err)
	}
	if art.Subject != "Quick question" || art.Body != "Hi Jane" {
		t.Fatalf("artifact = %+v", art)
	}

	for name, raw := range map[string]string{
		"no json":         "plain text",
		"invalid json":    `{"subject": "a", "body": }`,
		"missing body":    `{"subject": "a"}`,
		"empty subject":   `{"subject": "  ", "body": "b"}`,
		"wrong key types": `{"subject": 1, "body": 2}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseArtifact(raw, core.StageFollowup1)
			var me *core.MalformedResponseError
			if !errors.As(err, &me) {
				t.Fatalf("ParseArtifact(%q) err = %v, want MalformedResponseError", raw, err)
			}
			if me.Stage != core.StageFollowup1 {
				t.Fatalf("Stage = %q", me.Stage)
			}
		})
	}
}

func TestInstructionCoversAllStagePairs(t *testing.T) {
	t.Parallel()

	for _, stage := range []core.Stage{core.StageInitial, core.StageFollowup1, core.StageFollowup2, core.StageSingle} {
		for _, mode := range []core.Mode{core.ModeProspect, core.ModeMarcom} {
			instr, err := Instruction(stage, mode)
			if err != nil {
				t.Fatalf("Instruction(%s, %s): %v", stage, mode, err)
			}
			if strings.TrimSpace(instr) == "" {
				t.Fatalf("Instruction(%s, %s) is empty", stage, mode)
			}
		}
	}

	// Follow-ups share one body across modes.
	a, _ := Instruction(core.StageFollowup1, core.ModeProspect)
	b, _ := Instruction(core.StageFollowup1, core.ModeMarcom)
	if a != b {
		t.Fatal("followup1 instruction differs across modes")
	}
}

func TestSystemPromptReflectsBrandAndMode(t *testing.T) {
	t.Parallel()

	b := brand.Default()
	sys := SystemPrompt(b, core.ModeProspect)
	if !strings.Contains(sys, b.Sender.Name) {
		t.Fatal("system prompt missing sender name")
	}
	if !strings.Contains(sys, `Sign off as "- Christopher"`) {
		t.Fatalf("system prompt missing sign-off rule:\n%s", sys)
	}
	if !strings.Contains(sys, "Peer-to-peer") {
		t.Fatal("prospect voice block missing")
	}

	marcom := SystemPrompt(b, core.ModeMarcom)
	if !strings.Contains(marcom, "marketing-communications emails") {
		t.Fatal("marcom audience missing")
	}
	if strings.Contains(marcom, "Peer-to-peer") {
		t.Fatal("marcom prompt carries the prospect voice block")
	}
}

func TestUserPromptFieldsAndJSONRequirement(t *testing.T) {
	t.Parallel()

	p := core.Prospect{
		Company:   "Acme",
		FirstName: "Jane",
		Email:     "jane@acme.com",
		Trigger:   core.TriggerFunding,
	}
	instr, err := Instruction(core.StageInitial, core.ModeProspect)
	if err != nil {
		t.Fatalf("Instruction: %v", err)
	}
	user := UserPrompt(p, instr)
	for _, want := range []string{
		"- Company: Acme",
		"- Name: Jane",
		"- Title: Unknown",
		"- Trigger: funding",
		"- Trigger Details: None",
		"Return ONLY a JSON object",
		`{"subject": "subject line here", "body": "email body here"}`,
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, user)
		}
	}
}
