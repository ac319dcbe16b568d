package workflow

import (
	"encoding/base64"
	"fmt"

	"blog_visual_assistant/search"
)

// Stage is one of the four mutually exclusive workflow phases.
type Stage int

const (
	StageTopicGeneration Stage = iota
	StagePostSetup
	StageImageCustomization
	StageResults
)

func (s Stage) String() string {
	switch s {
	case StageTopicGeneration:
		return "topic_generation"
	case StagePostSetup:
		return "post_setup"
	case StageImageCustomization:
		return "image_customization"
	case StageResults:
		return "results"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	switch string(b) {
	case "topic_generation":
		*s = StageTopicGeneration
	case "post_setup":
		*s = StagePostSetup
	case "image_customization":
		*s = StageImageCustomization
	case "results":
		*s = StageResults
	default:
		return fmt.Errorf("unknown stage %q", b)
	}
	return nil
}

// SourceMode tags where a paragraph's image comes from. It is set exactly
// once: to SourceUserUpload when a file arrives, or to SourceAIGenerate by
// the finalize pass for entries that never received an upload.
type SourceMode int

const (
	SourceUnset SourceMode = iota
	SourceAIGenerate
	SourceUserUpload
)

func (m SourceMode) String() string {
	switch m {
	case SourceAIGenerate:
		return "ai_generate"
	case SourceUserUpload:
		return "user_upload"
	default:
		return "unset"
	}
}

func (m SourceMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *SourceMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unset":
		*m = SourceUnset
	case "ai_generate":
		*m = SourceAIGenerate
	case "user_upload":
		*m = SourceUserUpload
	default:
		return fmt.Errorf("unknown source mode %q", b)
	}
	return nil
}

// EditStage tracks a paragraph's path toward its final image.
type EditStage int

const (
	EditPending EditStage = iota
	EditUploaded
	EditKeepOriginal
	EditEditing
	EditTranslating
	EditFinalized
	EditFailed
)

func (e EditStage) String() string {
	switch e {
	case EditPending:
		return "pending"
	case EditUploaded:
		return "uploaded"
	case EditKeepOriginal:
		return "keep_original"
	case EditEditing:
		return "editing"
	case EditTranslating:
		return "translating"
	case EditFinalized:
		return "finalized"
	case EditFailed:
		return "failed"
	default:
		return fmt.Sprintf("edit_stage(%d)", int(e))
	}
}

func (e EditStage) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EditStage) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*e = EditPending
	case "uploaded":
		*e = EditUploaded
	case "keep_original":
		*e = EditKeepOriginal
	case "editing":
		*e = EditEditing
	case "translating":
		*e = EditTranslating
	case "finalized":
		*e = EditFinalized
	case "failed":
		*e = EditFailed
	default:
		return fmt.Errorf("unknown edit stage %q", b)
	}
	return nil
}

// DraftPost is the generated post. Body stays editable until segmentation.
type DraftPost struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ParagraphResult is the per-paragraph record. The collection's length is
// fixed at segmentation time; entries are mutated in place until finalized.
type ParagraphResult struct {
	Text            string     `json:"text"`
	Source          SourceMode `json:"source"`
	UploadedBytes   []byte     `json:"-"`
	UploadedMIME    string     `json:"uploaded_mime,omitempty"`
	UploadedEncoded string     `json:"uploaded_image,omitempty"`
	Directive       string     `json:"directive,omitempty"`
	EditStage       EditStage  `json:"edit_stage"`
	Prompt          string     `json:"prompt,omitempty"`
	FinalImage      string     `json:"final_image,omitempty"`
	FinalBytes      []byte     `json:"-"`
	FinalMIME       string     `json:"-"`
}

// resolved reports whether this entry is eligible for the finalize pass.
func (p *ParagraphResult) resolved() bool {
	if p.Source != SourceUserUpload {
		return true
	}
	switch p.EditStage {
	case EditKeepOriginal, EditFinalized:
		return true
	case EditEditing:
		return p.Directive != ""
	default:
		return false
	}
}

// Progress is published after each paragraph the finalize pass completes,
// so a progress view can render finished entries before the pass ends.
type Progress struct {
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Paragraph ParagraphResult `json:"paragraph"`
}

// State is a render-ready snapshot of the engine.
type State struct {
	Stage       Stage             `json:"stage"`
	SearchHits  []search.Hit      `json:"search_hits,omitempty"`
	Topics      []string          `json:"topics,omitempty"`
	Draft       DraftPost         `json:"draft"`
	UploadFlow  bool              `json:"upload_flow"`
	Paragraphs  []ParagraphResult `json:"paragraphs,omitempty"`
	Advisories  []string          `json:"advisories,omitempty"`
	CanFinalize bool              `json:"can_finalize"`
}

func dataURI(mimeType string, b []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(b))
}
