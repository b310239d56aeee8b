package discord

import (
	"testing"
)

func TestAutocomplete_QueueChoices(t *testing.T) {
	f := newFixture()

	if choices := f.complete.queueChoices(testGuild.String(), ""); len(choices) != 0 {
		t.Errorf("expected no choices for an empty queue, got %d", len(choices))
	}

	f.enqueue(t, "X", "Alpha", "Beta", "Gamma")

	tests := []struct {
		name  string
		typed string
		want  []int
	}{
		{name: "all", typed: "", want: []int{1, 2, 3}},
		{name: "by title", typed: "ga", want: []int{3}},
		{name: "by position", typed: "2", want: []int{2}},
		{name: "case insensitive", typed: "BETA", want: []int{2}},
		{name: "no match", typed: "zzz", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choices := f.complete.queueChoices(testGuild.String(), tt.typed)
			if len(choices) != len(tt.want) {
				t.Fatalf("expected %d choices, got %d", len(tt.want), len(choices))
			}
			for i, choice := range choices {
				if choice.Value != tt.want[i] {
					t.Errorf("choice %d: expected position %d, got %v", i, tt.want[i], choice.Value)
				}
			}
		})
	}

	if choices := f.complete.queueChoices("not-a-snowflake", ""); len(choices) != 0 {
		t.Error("expected no choices for an invalid guild")
	}
}

func TestAutocomplete_PlaylistChoices(t *testing.T) {
	f := newFixture()
	for _, title := range []string{"Morning", "Evening", "Night"} {
		_, _ = f.playlists.Add(t.Context(), testUser, "https://example.com/"+title, title)
	}

	choices := f.complete.playlistChoices(testUser.String(), "ning")
	if len(choices) != 2 {
		t.Fatalf("expected 2 choices, got %d", len(choices))
	}
	if choices[0].Value != "1" || choices[1].Value != "2" {
		t.Errorf("expected positions 1 and 2, got %v and %v", choices[0].Value, choices[1].Value)
	}
	if choices[0].Name != "1. Morning" {
		t.Errorf("unexpected choice name %q", choices[0].Name)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("ああああああ", 5); got != "ああ..." {
		t.Errorf("truncate() = %q", got)
	}
}
