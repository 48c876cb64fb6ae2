package media

import (
	"encoding/json"
	"fmt"
	"maps"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radif/mediaservice/internal/storage"
)

// Key partitions.
const (
	CategoryImages = "images"
	CategoryVideos = "videos"
	CategoryOthers = "others"
)

// System metadata names, stored under storage.MetadataPrefix.
const (
	MetaOriginalName = "original-name"
	MetaUploadedBy   = "uploaded-by"
	MetaUploadedAt   = "uploaded-at"
)

// timestampLayout is ISO-8601 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// CategoryFor maps a MIME type onto its key partition.
func CategoryFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return CategoryImages
	case strings.HasPrefix(contentType, "video/"):
		return CategoryVideos
	default:
		return CategoryOthers
	}
}

// KeyBuilder derives storage keys and system metadata. Now and Token are
// replaceable for deterministic tests.
type KeyBuilder struct {
	Now   func() time.Time
	Token func() string
}

// NewKeyBuilder returns a KeyBuilder using the wall clock and random UUIDs.
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{Now: time.Now, Token: uuid.NewString}
}

// UploadKey builds the key of a relayed upload:
// <category>/<unix-ms>-<token>-<sanitized name>. Without a usable name the
// extension implied by contentType is used instead.
func (b *KeyBuilder) UploadKey(originalName, contentType string) string {
	prefix := b.prefix(contentType)
	if name := SanitizeName(originalName); name != "" {
		return prefix + "-" + name
	}
	return prefix + extensionFor("", contentType)
}

// DirectKey builds the key named in a direct-upload capability:
// <category>/<unix-ms>-<token><.ext>.
func (b *KeyBuilder) DirectKey(fileName, contentType string) string {
	return b.prefix(contentType) + extensionFor(fileName, contentType)
}

func (b *KeyBuilder) prefix(contentType string) string {
	return fmt.Sprintf("%s/%d-%s", CategoryFor(contentType), b.Now().UnixMilli(), b.Token())
}

// Metadata assembles the system metadata of an upload. Custom entries share
// the namespace of the reserved ones, which win on collision. The content
// type travels as the object's Content-Type, not as metadata.
func (b *KeyBuilder) Metadata(originalName, uploader string, custom map[string]string) map[string]string {
	if uploader == "" {
		uploader = "anonymous"
	}
	meta := make(map[string]string, len(custom)+3)
	for k, v := range custom {
		meta[storage.MetadataHeader(k)] = encodeHeaderValue(v)
	}
	meta[storage.MetadataHeader(MetaOriginalName)] = encodeHeaderValue(originalName)
	meta[storage.MetadataHeader(MetaUploadedBy)] = encodeHeaderValue(uploader)
	meta[storage.MetadataHeader(MetaUploadedAt)] = b.Now().UTC().Format(timestampLayout)
	return meta
}

// SanitizeName collapses whitespace runs to underscores and strips path
// separators so the name cannot escape its partition.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return ' '
		}
		return r
	}, name)
	return strings.Join(strings.Fields(name), "_")
}

func extensionFor(fileName, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(SanitizeName(fileName))); len(ext) > 1 {
		return ext
	}
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return ""
}

// ParseCustomMetadata decodes a JSON object of caller metadata. Invalid input
// is logged and dropped; it never fails an upload.
func ParseCustomMetadata(raw string, log zerolog.Logger) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		log.Warn().Err(err).Msg("ignoring invalid custom metadata")
		return nil
	}

	// Header names are case-insensitive; the first field in sorted order keeps
	// a name that several fields reduce to.
	out := make(map[string]string, len(fields))
	seen := make(map[string]string, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		v := fields[k]
		name := metadataName(k)
		if name == "" {
			log.Warn().Str("field", k).Msg("ignoring custom metadata field with unusable name")
			continue
		}
		if v == nil {
			continue
		}
		folded := strings.ToLower(name)
		if first, ok := seen[folded]; ok {
			log.Warn().Str("field", k).Str("kept", first).Msg("ignoring custom metadata field that collides with another")
			continue
		}
		seen[folded] = k
		switch val := v.(type) {
		case string:
			out[name] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[name] = string(b)
		}
	}
	return out
}

// metadataName reduces k to a header-safe token, or "" if nothing remains.
func metadataName(k string) string {
	k = SanitizeName(k)
	for _, r := range k {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			return ""
		}
	}
	return k
}

// encodeHeaderValue RFC 2047-encodes values that are not plain printable ASCII,
// which object stores cannot carry in headers verbatim.
func encodeHeaderValue(v string) string {
	for _, r := range v {
		if r < 0x20 || r > 0x7e {
			return mime.QEncoding.Encode("utf-8", v)
		}
	}
	return v
}

var headerDecoder = new(mime.WordDecoder)

func decodeHeaderValue(v string) string {
	decoded, err := headerDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}
