package xmltv

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriterFullDocument(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.WriteChannel(&Channel{ID: "ch1", DisplayName: "Channel One"}); err != nil {
		t.Fatalf("WriteChannel: %v", err)
	}

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := w.WriteProgramme(&Programme{
		Start:       start,
		Stop:        start.Add(30 * time.Minute),
		Channel:     "ch1",
		Title:       "Morning Show",
		Description: "News & weather",
		Category:    "Publicity",
		VideoSrc:    "https://example.com/watch?v=abc",
	})
	if err != nil {
		t.Fatalf("WriteProgramme: %v", err)
	}
	if err := w.WriteFooter(); err != nil {
		t.Fatalf("WriteFooter: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<tv generator-info-name="pseudotv">`,
		`<channel id="ch1">`,
		`<display-name>Channel One</display-name>`,
		`<programme start="20250301120000 +0000" stop="20250301123000 +0000" channel="ch1">`,
		`<title>Morning Show</title>`,
		`<desc>News &amp; weather</desc>`,
		`<category>Publicity</category>`,
		`<video src="https://example.com/watch?v=abc"/>`,
		`</tv>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriterOmitsEmptyOptionalElements(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := w.WriteProgramme(&Programme{
		Start:   start,
		Stop:    start.Add(time.Minute),
		Channel: "ch1",
		Title:   "Untitled",
	})
	if err != nil {
		t.Fatalf("WriteProgramme: %v", err)
	}

	out := buf.String()
	for _, unwanted := range []string{"<desc>", "<category>", "<video"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output should not contain %s:\n%s", unwanted, out)
		}
	}
}

func TestWriterRejectsChannelAfterProgramme(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := w.WriteProgramme(&Programme{Start: start, Stop: start.Add(time.Minute), Channel: "ch1", Title: "x"}); err != nil {
		t.Fatalf("WriteProgramme: %v", err)
	}

	if err := w.WriteChannel(&Channel{ID: "late"}); err == nil {
		t.Error("expected error writing channel after programme")
	}
}

func TestWriterEscapesSpecialCharacters(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := w.WriteProgramme(&Programme{
		Start:   start,
		Stop:    start.Add(time.Minute),
		Channel: "ch1",
		Title:   `Tom & Jerry <uncut> "special"`,
	})
	if err != nil {
		t.Fatalf("WriteProgramme: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Tom &amp; Jerry &lt;uncut&gt;") {
		t.Errorf("title not escaped:\n%s", out)
	}
	if strings.Contains(out, "<uncut>") {
		t.Errorf("raw angle brackets leaked:\n%s", out)
	}
}

func TestFormatTimeNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got := formatTime(time.Date(2025, 3, 1, 13, 0, 0, 0, loc))
	if got != "20250301120000 +0000" {
		t.Errorf("formatTime = %q, want UTC normalized", got)
	}
}
