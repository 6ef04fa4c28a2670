package menu

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"1", ActionFullBackup},
		{"2", ActionFullRestore},
		{"3", ActionDataBackup},
		{"4", ActionGuidedRestore},
		{"5", ActionOfflineBackup},
		{"6", ActionStatus},
		{"7", ActionScheduleConfigure},
		{"8", ActionScheduleShow},
		{"9", ActionScheduleDelete},
		{"0", ActionExit},
		{" 4 ", ActionGuidedRestore},
		{"10", ActionUnknown},
		{"x", ActionUnknown},
		{"", ActionUnknown},
	}
	for _, tt := range tests {
		if got := ParseAction(tt.in); got != tt.want {
			t.Errorf("ParseAction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func prompterWith(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPrompter(strings.NewReader(input), &out), &out
}

func TestConfirmExact(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"yes\n", true},
		{"YES\n", false},
		{"y\n", false},
		{"yes please\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		p, _ := prompterWith(tt.in)
		if got := p.ConfirmExact("Destroy everything?", ConfirmToken); got != tt.want {
			t.Errorf("ConfirmExact with input %q = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfirmDefaultYes_EmptyAccepts(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"\n", true},
		{"", true},
		{"y\n", true},
		{"whatever\n", true},
		{"n\n", false},
		{"NO\n", false},
	}
	for _, tt := range tests {
		p, _ := prompterWith(tt.in)
		if got := p.ConfirmDefaultYes("Use data restore?"); got != tt.want {
			t.Errorf("ConfirmDefaultYes with input %q = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfirmDefaultNo_RequiresExplicitYes(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"\n", false},
		{"", false},
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"sure\n", false},
	}
	for _, tt := range tests {
		p, _ := prompterWith(tt.in)
		if got := p.ConfirmDefaultNo("Restore full bundle?"); got != tt.want {
			t.Errorf("ConfirmDefaultNo with input %q = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLine_WritesPrompt(t *testing.T) {
	p, out := prompterWith("03:30\n")
	got := p.Line("Daily full backup time (HH:MM): ")
	if got != "03:30" {
		t.Errorf("expected trimmed input '03:30', got %q", got)
	}
	if !strings.Contains(out.String(), "HH:MM") {
		t.Errorf("prompt not written: %q", out.String())
	}
}
