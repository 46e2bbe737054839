package xmltv

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Parser provides streaming XMLTV parsing with callback-based processing.
type Parser struct {
	// OnChannel is called for each channel definition.
	OnChannel func(channel *Channel) error

	// OnProgramme is called for each parsed programme.
	OnProgramme func(programme *Programme) error

	// OnError is called for recoverable parsing errors. If nil, such
	// errors are silently ignored.
	OnError func(err error)
}

// parseTime parses XMLTV time format: "20240101120000 +0000".
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	formats := []string{
		"20060102150405 -0700",
		"20060102150405",
		"200601021504",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %s", s)
}

// Parse parses an XMLTV document from a reader. Gzip-compressed input is
// detected and decompressed transparently.
func (p *Parser) Parse(r io.Reader) error {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("opening gzip reader: %w", err)
		}
		defer gz.Close()
		return p.parse(gz)
	}
	return p.parse(br)
}

func (p *Parser) parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading XML token: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "channel":
			if err := p.parseChannel(decoder, start); err != nil {
				return err
			}
		case "programme":
			if err := p.parseProgramme(decoder, start); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Parser) parseChannel(decoder *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		ID          string `xml:"id,attr"`
		DisplayName string `xml:"display-name"`
	}
	if err := decoder.DecodeElement(&raw, &start); err != nil {
		p.recoverable(fmt.Errorf("decoding channel: %w", err))
		return nil
	}

	if p.OnChannel != nil {
		return p.OnChannel(&Channel{ID: raw.ID, DisplayName: raw.DisplayName})
	}
	return nil
}

func (p *Parser) parseProgramme(decoder *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Start       string `xml:"start,attr"`
		Stop        string `xml:"stop,attr"`
		Channel     string `xml:"channel,attr"`
		Title       string `xml:"title"`
		Description string `xml:"desc"`
		Category    string `xml:"category"`
		Video       struct {
			Src string `xml:"src,attr"`
		} `xml:"video"`
	}
	if err := decoder.DecodeElement(&raw, &start); err != nil {
		p.recoverable(fmt.Errorf("decoding programme: %w", err))
		return nil
	}

	startTime, err := parseTime(raw.Start)
	if err != nil {
		p.recoverable(fmt.Errorf("programme start: %w", err))
		return nil
	}
	stopTime, err := parseTime(raw.Stop)
	if err != nil {
		p.recoverable(fmt.Errorf("programme stop: %w", err))
		return nil
	}

	if p.OnProgramme != nil {
		return p.OnProgramme(&Programme{
			Start:       startTime,
			Stop:        stopTime,
			Channel:     raw.Channel,
			Title:       raw.Title,
			Description: raw.Description,
			Category:    raw.Category,
			VideoSrc:    raw.Video.Src,
		})
	}
	return nil
}

func (p *Parser) recoverable(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}
