package arena

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
)

var tagPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// SystemKey identifies a (system, variant) pair. The zero value is not
// valid; construct with NewSystemKey or ParseSystemKey.
type SystemKey struct {
	SystemTag  string
	VariantTag string
}

func NewSystemKey(systemTag, variantTag string) (SystemKey, error) {
	if !tagPattern.MatchString(systemTag) {
		return SystemKey{}, fmt.Errorf("system_tag %q must match [a-z0-9-]+", systemTag)
	}
	if !tagPattern.MatchString(variantTag) {
		return SystemKey{}, fmt.Errorf("variant_tag %q must match [a-z0-9-]+", variantTag)
	}
	return SystemKey{SystemTag: systemTag, VariantTag: variantTag}, nil
}

// ParseSystemKey parses the "system_tag:variant_tag" string form.
func ParseSystemKey(s string) (SystemKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return SystemKey{}, fmt.Errorf("system key %q missing ':' separator", s)
	}
	return NewSystemKey(parts[0], parts[1])
}

func (k SystemKey) String() string {
	return k.SystemTag + ":" + k.VariantTag
}

// Less gives the deterministic lexicographic ordering: system_tag then
// variant_tag.
func (k SystemKey) Less(other SystemKey) bool {
	if k.SystemTag != other.SystemTag {
		return k.SystemTag < other.SystemTag
	}
	return k.VariantTag < other.VariantTag
}

// Port is a deployment-layer convenience: a stable hash of the key into
// the range 20000-39999. BuildClients in the gateway combines it with the
// configured base URL to address each system.
func (k SystemKey) Port() uint16 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.String()))
	return uint16(20000 + h.Sum32()%20000)
}

func (k SystemKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{k.SystemTag, k.VariantTag})
}

func (k *SystemKey) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	key, err := NewSystemKey(pair[0], pair[1])
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// SystemAccess classifies who may use a system.
type SystemAccess string

const (
	AccessOpen        SystemAccess = "OPEN"
	AccessProprietary SystemAccess = "PROPRIETARY"
)

// TrainingData describes the provenance of a system's training corpus.
type TrainingData struct {
	Type      string   `json:"type" yaml:"type"`
	Sources   []string `json:"sources" yaml:"sources"`
	NumTracks *int     `json:"num_tracks,omitempty" yaml:"num_tracks,omitempty"`
	NumHours  *float64 `json:"num_hours,omitempty" yaml:"num_hours,omitempty"`
}

// Links holds named reference URLs for a system.
type Links struct {
	Home string `json:"home,omitempty" yaml:"home,omitempty"`
	Paper string `json:"paper,omitempty" yaml:"paper,omitempty"`
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
}

// PrimaryLink returns the best single link to show a user: home, then
// paper, then code, then empty.
func (l Links) PrimaryLink() string {
	switch {
	case l.Home != "":
		return l.Home
	case l.Paper != "":
		return l.Paper
	case l.Code != "":
		return l.Code
	default:
		return ""
	}
}

// SystemMetadata is immutable per SystemKey, derived from the registry.
type SystemMetadata struct {
	Key                  SystemKey    `json:"key"`
	DisplayName          string       `json:"display_name"`
	Description          string       `json:"description"`
	Organization         string       `json:"organization"`
	Access               SystemAccess `json:"access"`
	ModelType            string       `json:"model_type,omitempty"`
	TrainingData         TrainingData `json:"training_data,omitempty"`
	Citation             string       `json:"citation,omitempty"`
	Links                Links        `json:"links,omitempty"`
	SupportsLyrics       bool         `json:"supports_lyrics"`
	RequiresGPU          bool         `json:"requires_gpu"`
	ReleaseAudioPublicly bool         `json:"release_audio_publicly"`
}

// Anonymized returns the metadata shape exposed to clients before a vote
// is recorded: the system identity is replaced with the literal
// "anonymized" and every descriptive field is dropped; only
// SupportsLyrics is kept, since a listener can already hear whether the
// clip has vocals.
func (m SystemMetadata) Anonymized() SystemMetadata {
	return SystemMetadata{
		Key:            SystemKey{SystemTag: "anonymized", VariantTag: "anonymized"},
		SupportsLyrics: m.SupportsLyrics,
	}
}

// PromptSupport is returned by a system for a given prompt so the sampler
// can filter candidates.
type PromptSupport string

const (
	Supported           PromptSupport = "SUPPORTED"
	Unsupported         PromptSupport = "UNSUPPORTED"
	UnsupportedLyrics   PromptSupport = "UNSUPPORTED_LYRICS"
	UnsupportedDuration PromptSupport = "UNSUPPORTED_DURATION"
)

// DetailedTextToMusicPrompt is the structured prompt consumed by
// generators.
type DetailedTextToMusicPrompt struct {
	OverallPrompt string   `json:"overall_prompt"`
	Duration      float64  `json:"duration"`
	Instrumental  bool     `json:"instrumental"`
	Lyrics        *string  `json:"lyrics,omitempty"`
	LyricsTheme   *string  `json:"lyrics_theme,omitempty"`
	LyricsStyle   *string  `json:"lyrics_style,omitempty"`
	Seed          uint32   `json:"seed"`
}

// Validate enforces the invariant that an instrumental prompt carries no
// lyrics.
func (p DetailedTextToMusicPrompt) Validate() error {
	if p.Instrumental && p.Lyrics != nil {
		return fmt.Errorf("instrumental prompt must not carry lyrics")
	}
	if p.Duration <= 0 || p.Duration > 300 {
		return fmt.Errorf("duration %v out of range (0, 300]", p.Duration)
	}
	return nil
}

// GenerateLyrics reports whether the lyrics stage should run: the prompt
// is vocal and doesn't already supply lyrics.
func (p DetailedTextToMusicPrompt) GenerateLyrics() bool {
	return !p.Instrumental && p.Lyrics == nil
}

// Checksum is an md5 of the prompt's JSON-sorted fields, used to key the
// prebaked-prompt lookup and to detect when a submitted prompt matches a
// known prebaked example.
func (p DetailedTextToMusicPrompt) Checksum() string {
	fields := map[string]any{
		"overall_prompt": p.OverallPrompt,
		"duration":       p.Duration,
		"instrumental":   p.Instrumental,
	}
	if p.Lyrics != nil {
		fields["lyrics"] = *p.Lyrics
	}
	if p.LyricsTheme != nil {
		fields["lyrics_theme"] = *p.LyricsTheme
	}
	if p.LyricsStyle != nil {
		fields["lyrics_style"] = *p.LyricsStyle
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		b, _ := json.Marshal(fields[k])
		ordered = append(ordered, fmt.Sprintf("%q:%s", k, b))
	}
	sum := md5.Sum([]byte("{" + strings.Join(ordered, ",") + "}"))
	return hex.EncodeToString(sum[:])
}

// TextToMusicResponse is what a System Server returns for one prompt.
type TextToMusicResponse struct {
	AudioBytes []byte   `json:"-"`
	SampleRate int      `json:"sample_rate"`
	Lyrics     *string  `json:"lyrics,omitempty"`
	GenerateMs int64    `json:"-"`
}
