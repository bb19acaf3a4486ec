package main

import (
	"chat-relay/domain"

	"github.com/gookit/color"
)

// Renderer turns what the server sends into terminal lines.
type Renderer struct {
	Colours bool
}

func (r Renderer) Record(record domain.ChatRecord) string {
	line := record.Render()
	if !r.Colours {
		return line
	}
	switch record.Kind {
	case domain.KindConnect:
		return color.New(color.FgGreen).Render(line)
	case domain.KindDisconnect:
		return color.New(color.FgYellow).Render(line)
	case domain.KindError:
		return color.New(color.FgRed, color.OpBold).Render(line)
	case domain.KindInfo:
		return color.New(color.FgCyan).Render(line)
	default:
		return line
	}
}

func (r Renderer) Datagram(text string) string {
	line := "[UDP] " + text
	if !r.Colours {
		return line
	}
	return color.New(color.FgMagenta).Render(line)
}

func (r Renderer) Notice(text string) string {
	if !r.Colours {
		return text
	}
	return color.New(color.BgBlack, color.FgWhite).Render(text)
}
