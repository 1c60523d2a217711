package harvest

import (
	"fmt"
	"path/filepath"
	"strings"

	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
)

// archiveExtensions marks document filenames that classify as archives.
var archiveExtensions = map[string]bool{
	".zip": true,
	".rar": true,
	".7z":  true,
	".tar": true,
	".gz":  true,
	".iso": true,
	".dmg": true,
}

// Classified is the output of the media classifier: the harvest category plus
// a canonical filename and MIME type for storage.
type Classified struct {
	Category domain.MediaCategory
	FileName string
	MimeType string
}

// Classify maps a message's media kind to its category, filename and MIME
// type. It is deterministic: the same message always yields the same result.
func Classify(msg chat.Message) Classified {
	if msg.Media == nil {
		return Classified{
			Category: domain.CategoryOther,
			FileName: fmt.Sprintf("file_%d", msg.ID),
			MimeType: "application/octet-stream",
		}
	}
	m := msg.Media
	switch m.Kind {
	case chat.KindPhoto:
		return Classified{
			Category: domain.CategoryPhoto,
			FileName: fmt.Sprintf("photo_%d.jpg", msg.ID),
			MimeType: "image/jpeg",
		}
	case chat.KindVideo, chat.KindVideoNote:
		c := Classified{
			Category: domain.CategoryVideo,
			FileName: fmt.Sprintf("video_%d.mp4", msg.ID),
			MimeType: "video/mp4",
		}
		if m.FileName != "" {
			c.FileName = m.FileName
		}
		if m.MimeType != "" {
			c.MimeType = m.MimeType
		}
		return c
	case chat.KindAudio:
		c := Classified{
			Category: domain.CategoryAudio,
			FileName: fmt.Sprintf("audio_%d.mp3", msg.ID),
			MimeType: "audio/mpeg",
		}
		if m.FileName != "" {
			c.FileName = m.FileName
		}
		if m.MimeType != "" {
			c.MimeType = m.MimeType
		}
		return c
	case chat.KindVoice:
		return Classified{
			Category: domain.CategoryAudio,
			FileName: fmt.Sprintf("voice_%d.ogg", msg.ID),
			MimeType: "audio/ogg",
		}
	case chat.KindDocument:
		name := m.FileName
		if name == "" {
			name = fmt.Sprintf("document_%d", msg.ID)
		}
		mime := m.MimeType
		if mime == "" {
			mime = "application/octet-stream"
		}
		category := domain.CategoryDocument
		if archiveExtensions[strings.ToLower(filepath.Ext(name))] {
			category = domain.CategoryArchive
		}
		return Classified{Category: category, FileName: name, MimeType: mime}
	default:
		return Classified{
			Category: domain.CategoryOther,
			FileName: fmt.Sprintf("file_%d", msg.ID),
			MimeType: "application/octet-stream",
		}
	}
}
