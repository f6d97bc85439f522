package bot

import (
	"strings"
	"testing"
)

func TestSplitMessageShortTextUntouched(t *testing.T) {
	parts := SplitMessage("hello world")
	if len(parts) != 1 || parts[0] != "hello world" {
		t.Fatalf("parts = %q", parts)
	}
}

func TestSplitMessagePrefersSentenceBoundary(t *testing.T) {
	sentence := strings.Repeat("a", 3000) + ". "
	text := sentence + strings.Repeat("b", 3000) + "."
	parts := SplitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if !strings.HasSuffix(parts[0], ".") {
		t.Fatalf("first part should end at a sentence boundary, got suffix %q", parts[0][len(parts[0])-10:])
	}
	for i, p := range parts {
		if n := len([]rune(p)); n > maxMessageLen {
			t.Fatalf("part %d has %d runes", i, n)
		}
	}
}

func TestSplitMessageHardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", maxMessageLen*2+100)
	parts := SplitMessage(text)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	total := 0
	for i, p := range parts {
		n := len([]rune(p))
		if n > maxMessageLen {
			t.Fatalf("part %d has %d runes", i, n)
		}
		total += n
	}
	if total != maxMessageLen*2+100 {
		t.Fatalf("lost content: %d runes total", total)
	}
}

func TestSplitMessageDzongkhaBoundary(t *testing.T) {
	sentence := strings.Repeat("ཀ", 2500) + "། "
	text := sentence + strings.Repeat("ཁ", 2500) + "།"
	parts := SplitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if !strings.HasSuffix(parts[0], "།") {
		t.Fatal("first part should end at the tsheg bar")
	}
}

func TestMessagesFallsBackToEnglish(t *testing.T) {
	if Messages("fr").Welcome != Messages(LangEN).Welcome {
		t.Fatal("unknown language must fall back to English")
	}
	if Messages(LangDZ).Welcome == Messages(LangEN).Welcome {
		t.Fatal("Dzongkha catalog must differ from English")
	}
}
