// Package prompt builds the two-role chat prompt that pairs a note image
// with the OCR pass over it.
package prompt

import (
	"strings"

	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/ocr"
	"github.com/jackzampolin/notejson/internal/providers"
)

// SystemInstruction is the fixed system role text.
const SystemInstruction = "You are an intelligent assistant that reads handwritten notes and converts them into JSON format. " +
	"Prioritize accuracy, interpret messy handwriting when needed, and preserve the intent and structure of the note. " +
	"If a list is found, output it as an array. " +
	"If headings or subheadings are detected, represent them hierarchically. " +
	"When in doubt, make a best guess and flag uncertain interpretations instead of silently guessing."

// Directive opens the user turn.
const Directive = "Please analyze the attached handwritten note and convert its content into JSON. " +
	"Maintain a clean structure with keys like 'title', 'body', etc."

// OCRLabel introduces the OCR block inside the user turn.
const OCRLabel = "OCR-extracted text (may contain errors, use it to cross-check your reading of the image):"

// Image is the transport form of the note image.
type Image struct {
	MIME   string `json:"mime"`
	Base64 string `json:"base64"`
}

// UserTurn carries exactly one text segment followed by exactly one image segment.
type UserTurn struct {
	Text  string `json:"text"`
	Image Image  `json:"image"`
}

// Prompt is the complete request prompt for one run.
type Prompt struct {
	System string   `json:"system"`
	User   UserTurn `json:"user"`
}

// Build composes the prompt for a note image and its OCR result.
// It is pure: the same inputs always produce the same prompt.
func Build(a *asset.Asset, r ocr.Result) Prompt {
	return Prompt{
		System: SystemInstruction,
		User: UserTurn{
			Text: UserText(r.PromptText()),
			Image: Image{
				MIME:   a.MIME(),
				Base64: a.Base64(),
			},
		},
	}
}

// UserText joins the directive and the labeled OCR block.
func UserText(ocrText string) string {
	var b strings.Builder
	b.WriteString(Directive)
	b.WriteString("\n\n")
	b.WriteString(OCRLabel)
	b.WriteString("\n")
	b.WriteString(ocrText)
	return b.String()
}

// Messages converts the prompt into chat messages: system first, then the
// user text with its single image attached.
func (p Prompt) Messages() []providers.Message {
	return []providers.Message{
		{Role: providers.RoleSystem, Content: p.System},
		{
			Role:    providers.RoleUser,
			Content: p.User.Text,
			Images: []providers.ImagePart{
				{MIME: p.User.Image.MIME, Base64: p.User.Image.Base64},
			},
		},
	}
}
