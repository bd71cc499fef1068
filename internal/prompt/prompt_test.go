package prompt

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"reflect"
	"strings"
	"testing"

	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/ocr"
	"github.com/jackzampolin/notejson/internal/providers"
)

func noteAsset(t *testing.T) *asset.Asset {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	a, err := asset.FromBytes(buf.Bytes(), "image/png")
	if err != nil {
		t.Fatalf("asset.FromBytes() error = %v", err)
	}
	return a
}

func TestBuild(t *testing.T) {
	a := noteAsset(t)

	tests := []struct {
		name    string
		result  ocr.Result
		wantOCR string
	}{
		{
			name:    "ocr text embedded",
			result:  ocr.Result{Engine: "tesseract", Text: "Groceries\n- milk"},
			wantOCR: "Groceries\n- milk",
		},
		{
			name:    "failed ocr uses sentinel",
			result:  ocr.Result{Engine: "tesseract", Err: &ocr.Error{Engine: "tesseract", Err: errors.New("boom")}},
			wantOCR: ocr.NoTextSentinel,
		},
		{
			name:    "empty ocr uses sentinel",
			result:  ocr.Result{Engine: "tesseract"},
			wantOCR: ocr.NoTextSentinel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(a, tt.result)

			if p.System != SystemInstruction {
				t.Errorf("System = %q", p.System)
			}
			if !strings.HasPrefix(p.User.Text, Directive) {
				t.Errorf("user text does not start with the directive: %q", p.User.Text)
			}
			wantTail := OCRLabel + "\n" + tt.wantOCR
			if !strings.HasSuffix(p.User.Text, wantTail) {
				t.Errorf("user text = %q, want suffix %q", p.User.Text, wantTail)
			}
			if p.User.Image.MIME != "image/png" {
				t.Errorf("Image.MIME = %q", p.User.Image.MIME)
			}
			if p.User.Image.Base64 != a.Base64() {
				t.Error("Image.Base64 does not match the asset")
			}
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a := noteAsset(t)
	r := ocr.Result{Engine: "tesseract", Text: "todo: call mom"}

	if !reflect.DeepEqual(Build(a, r), Build(a, r)) {
		t.Error("Build() is not deterministic")
	}
}

func TestSystemInstruction_CoversStructureRules(t *testing.T) {
	for _, want := range []string{"accuracy", "handwriting", "array", "hierarchically", "flag uncertain"} {
		if !strings.Contains(SystemInstruction, want) {
			t.Errorf("system instruction missing %q", want)
		}
	}
}

func TestPrompt_Messages(t *testing.T) {
	a := noteAsset(t)
	msgs := Build(a, ocr.Result{Text: "hello"}).Messages()

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != providers.RoleSystem || len(msgs[0].Images) != 0 {
		t.Errorf("first message = %+v, want plain system message", msgs[0])
	}
	user := msgs[1]
	if user.Role != providers.RoleUser {
		t.Errorf("second role = %q", user.Role)
	}
	if !strings.Contains(user.Content, "hello") {
		t.Errorf("user content missing OCR text: %q", user.Content)
	}
	if len(user.Images) != 1 {
		t.Fatalf("user message has %d images, want exactly 1", len(user.Images))
	}
	if user.Images[0].DataURL() != a.DataURL() {
		t.Error("image part does not match the asset data URL")
	}
}
