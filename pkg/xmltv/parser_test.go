package xmltv

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
	"time"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="pseudotv">
  <channel id="ch1">
    <display-name>Channel One</display-name>
  </channel>
  <programme start="20250301120000 +0000" stop="20250301123000 +0000" channel="ch1">
    <title>Morning Show</title>
    <desc>News &amp; weather</desc>
    <category>Publicity</category>
    <video src="https://example.com/watch?v=abc"/>
  </programme>
  <programme start="20250301123000 +0000" stop="20250301124000 +0000" channel="ch1">
    <title>Short Break</title>
  </programme>
</tv>
`

func TestParserCallbacks(t *testing.T) {
	var channels []*Channel
	var programmes []*Programme

	p := &Parser{
		OnChannel: func(ch *Channel) error {
			channels = append(channels, ch)
			return nil
		},
		OnProgramme: func(prog *Programme) error {
			programmes = append(programmes, prog)
			return nil
		},
	}

	if err := p.Parse(strings.NewReader(sampleDoc)); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(channels) != 1 {
		t.Fatalf("got %d channels, want 1", len(channels))
	}
	if channels[0].ID != "ch1" || channels[0].DisplayName != "Channel One" {
		t.Errorf("unexpected channel: %+v", channels[0])
	}

	if len(programmes) != 2 {
		t.Fatalf("got %d programmes, want 2", len(programmes))
	}

	first := programmes[0]
	wantStart := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if !first.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", first.Start, wantStart)
	}
	if first.Title != "Morning Show" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Description != "News & weather" {
		t.Errorf("description = %q", first.Description)
	}
	if first.Category != "Publicity" {
		t.Errorf("category = %q", first.Category)
	}
	if first.VideoSrc != "https://example.com/watch?v=abc" {
		t.Errorf("video src = %q", first.VideoSrc)
	}

	if programmes[1].Category != "" {
		t.Errorf("second programme category = %q, want empty", programmes[1].Category)
	}
}

func TestParserGzipInput(t *testing.T) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write([]byte(sampleDoc)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	count := 0
	p := &Parser{
		OnProgramme: func(*Programme) error {
			count++
			return nil
		},
	}

	if err := p.Parse(&compressed); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d programmes, want 2", count)
	}
}

func TestParserSkipsProgrammeWithBadTimes(t *testing.T) {
	doc := `<tv>
  <programme start="garbage" stop="alsogarbage" channel="ch1">
    <title>Broken</title>
  </programme>
  <programme start="20250301120000 +0000" stop="20250301123000 +0000" channel="ch1">
    <title>Fine</title>
  </programme>
</tv>`

	var errs []error
	var titles []string
	p := &Parser{
		OnProgramme: func(prog *Programme) error {
			titles = append(titles, prog.Title)
			return nil
		},
		OnError: func(err error) {
			errs = append(errs, err)
		},
	}

	if err := p.Parse(strings.NewReader(doc)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(titles) != 1 || titles[0] != "Fine" {
		t.Errorf("titles = %v, want [Fine]", titles)
	}
	if len(errs) == 0 {
		t.Error("expected a recoverable error for the broken programme")
	}
}

func TestParseTimeFormats(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"20250301120000 +0000", false},
		{"20250301120000", false},
		{"202503011200", false},
		{"", true},
		{"not a time", true},
	}
	for _, tt := range tests {
		_, err := parseTime(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestParserRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := &Programme{
		Start:       start,
		Stop:        start.Add(30 * time.Minute),
		Channel:     "ch1",
		Title:       "Tom & Jerry",
		Description: "A <classic>",
		VideoSrc:    "https://example.com/watch?v=xyz",
	}
	if err := w.WriteProgramme(orig); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFooter(); err != nil {
		t.Fatal(err)
	}

	var got *Programme
	p := &Parser{OnProgramme: func(prog *Programme) error {
		got = prog
		return nil
	}}
	if err := p.Parse(&buf); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got == nil {
		t.Fatal("no programme parsed")
	}
	if got.Title != orig.Title || got.Description != orig.Description || got.VideoSrc != orig.VideoSrc {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Start.Equal(orig.Start) || !got.Stop.Equal(orig.Stop) {
		t.Errorf("times mismatch: %+v", got)
	}
}
