package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"gigchat/errors"
)

// ContentKind is a closed set: the dynamic "type" string of the legacy
// payloads becomes a tagged variant with per-kind validation.
type ContentKind string

const (
	ContentText          ContentKind = "text"
	ContentFileReference ContentKind = "file"
	ContentSystemNotice  ContentKind = "system"
)

const (
	MaxTextRunes = 4000
	MaxFileSize  = 25 << 20 // 25 MiB
)

type Content struct {
	Kind   ContentKind    `json:"kind"`
	Text   string         `json:"text,omitempty"`
	File   *FileReference `json:"file,omitempty"`
	Notice string         `json:"notice,omitempty"`
}

// FileReference points at an externally stored attachment. The core
// never opens the bytes; it only validates the declared metadata.
type FileReference struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Mime string `json:"mime"`
}

func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

func SystemNotice(notice string) Content {
	return Content{Kind: ContentSystemNotice, Notice: notice}
}

func (c Content) Validate() error {
	switch c.Kind {
	case ContentText:
		if strings.TrimSpace(c.Text) == "" {
			return errors.Validationf("text content is empty")
		}
		if n := utf8.RuneCountInString(c.Text); n > MaxTextRunes {
			return errors.Validationf("text content has %d runes, limit is %d", n, MaxTextRunes)
		}
		return nil
	case ContentFileReference:
		if c.File == nil {
			return errors.Validationf("file content without a file reference")
		}
		return c.File.validate()
	case ContentSystemNotice:
		if strings.TrimSpace(c.Notice) == "" {
			return errors.Validationf("system notice is empty")
		}
		return nil
	default:
		return errors.Validationf("unknown content kind %q", c.Kind)
	}
}

func (f FileReference) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.Validationf("file reference has no name")
	}
	if f.Size <= 0 || f.Size > MaxFileSize {
		return errors.Validationf("file size %d out of bounds (max %d)", f.Size, MaxFileSize)
	}
	if mimetype.Lookup(f.Mime) == nil {
		return errors.Validationf("unknown MIME type %q", f.Mime)
	}
	return nil
}

// Summary renders the short form shown in room listings.
func (c Content) Summary() string {
	switch c.Kind {
	case ContentText:
		return c.Text
	case ContentFileReference:
		return "[file] " + c.File.Name
	case ContentSystemNotice:
		return c.Notice
	default:
		return ""
	}
}
