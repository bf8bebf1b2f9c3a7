package arena

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/google/uuid"
)

// Session identifies one frontend visit. create_time and uuid are
// generated once on first sight and carried by the client thereafter.
type Session struct {
	UUID            string    `json:"uuid"`
	CreateTime      time.Time `json:"create_time"`
	FrontendGitHash string    `json:"frontend_git_hash,omitempty"`
	AckTOS          bool      `json:"ack_tos"`
}

// NewSession stamps a fresh session identity.
func NewSession(frontendGitHash string, ackTOS bool) Session {
	return Session{
		UUID:            uuid.NewString(),
		CreateTime:      time.Now().UTC(),
		FrontendGitHash: frontendGitHash,
		AckTOS:          ackTOS,
	}
}

// anonymizedUserSalt is resolved once from the environment at process
// start. The core never persists a raw IP or fingerprint, only the
// salted digest, so the raw value is discarded immediately after hashing.
var anonymizedUserSalt = os.Getenv("ANONYMIZED_USER_SALT")

func saltedDigest(raw string) string {
	h := sha256.Sum256([]byte(anonymizedUserSalt + ":" + raw))
	return hex.EncodeToString(h[:])
}

// User identifies a voter by salted fingerprints only — there is no
// authentication in the core.
type User struct {
	SaltedIP          string `json:"salted_ip"`
	SaltedFingerprint string `json:"salted_fingerprint"`
}

// NewUser salts the raw identifiers immediately; the raw values are never
// retained on the struct.
func NewUser(rawIP, rawFingerprint string) User {
	return User{
		SaltedIP:          saltedDigest(rawIP),
		SaltedFingerprint: saltedDigest(rawFingerprint),
	}
}

// Checksum identifies a user across requests without exposing raw PII.
func (u User) Checksum() string {
	h := sha256.Sum256([]byte(u.SaltedIP + ":" + u.SaltedFingerprint))
	return hex.EncodeToString(h[:])
}

// Preference is the voter's pairwise judgment.
type Preference string

const (
	PreferenceA        Preference = "A"
	PreferenceB        Preference = "B"
	PreferenceTie      Preference = "TIE"
	PreferenceBothBad  Preference = "BOTH_BAD"
)

// ListenEvent is a playback event emitted by the client player.
type ListenEvent string

const (
	EventPlay  ListenEvent = "PLAY"
	EventPause ListenEvent = "PAUSE"
	EventSeek  ListenEvent = "SEEK"
)

// ListenDatum is one entry in a side's listen data sequence.
type ListenDatum struct {
	Event     ListenEvent `json:"event"`
	Timestamp float64     `json:"timestamp"`
}

// SumListenTime walks an ordered listen-data sequence and returns the
// total seconds spent actually playing. PAUSE and SEEK both close an open
// PLAY interval; a PLAY left open at the end of the sequence (no
// matching PAUSE/SEEK) is coerced to last until voteTimestamp.
func SumListenTime(data []ListenDatum, voteTimestamp float64) float64 {
	var total float64
	var playOpenAt float64
	playing := false

	for _, d := range data {
		switch d.Event {
		case EventPlay:
			if !playing {
				playOpenAt = d.Timestamp
				playing = true
			}
		case EventPause, EventSeek:
			if playing {
				total += d.Timestamp - playOpenAt
				playing = false
			}
		}
	}
	if playing {
		total += voteTimestamp - playOpenAt
	}
	return total
}

// Vote is the voter's judgment on a battle, plus the raw listen data used
// to enforce the minimum-listen-time precondition.
type Vote struct {
	Preference     Preference    `json:"preference"`
	PreferenceTime float64       `json:"preference_time"`
	AListenData    []ListenDatum `json:"a_listen_data"`
	BListenData    []ListenDatum `json:"b_listen_data"`
	AFeedback      *string       `json:"a_feedback,omitempty"`
	BFeedback      *string       `json:"b_feedback,omitempty"`
}

// AListenTime and BListenTime report accumulated PLAY seconds per side as
// of the vote's own timestamp.
func (v Vote) AListenTime() float64 {
	return SumListenTime(v.AListenData, v.PreferenceTime)
}

func (v Vote) BListenTime() float64 {
	return SumListenTime(v.BListenData, v.PreferenceTime)
}

// ResponseMetadata is per-side generation metadata attached to a battle.
type ResponseMetadata struct {
	SystemKey      SystemKey `json:"system_key"`
	QueuedAtUnix   float64   `json:"system_time_queued,omitempty"`
	StartedAtUnix  float64   `json:"system_time_started,omitempty"`
	CompletedAtUnix float64  `json:"system_time_completed,omitempty"`
	GatewayStartedAtUnix   float64 `json:"gateway_time_started,omitempty"`
	GatewayCompletedAtUnix float64 `json:"gateway_time_completed,omitempty"`
	GatewayNumRetries int     `json:"gateway_num_retries"`
	SizeBytes      int       `json:"size_bytes"`
	Lyrics         *string   `json:"lyrics,omitempty"`
	SampleRate     int       `json:"sample_rate"`
	Duration       float64   `json:"duration"`
	ModelWarm      bool      `json:"model_warm"`
	BatchSize      int       `json:"batch_size"`
}

// Anonymized replaces the SystemKey with "anonymized" and keeps only
// Lyrics, SampleRate and Duration; timing, size, retry, batch and warm
// fields are dropped. Lyrics survive the redaction because a listener can
// already hear whether the clip has vocals.
func (m ResponseMetadata) Anonymized() ResponseMetadata {
	return ResponseMetadata{
		SystemKey:  SystemKey{SystemTag: "anonymized", VariantTag: "anonymized"},
		Lyrics:     m.Lyrics,
		SampleRate: m.SampleRate,
		Duration:   m.Duration,
	}
}

// TimingEvent is one entry in a battle's latency breadcrumb trail.
type TimingEvent struct {
	Stage     string  `json:"stage"`
	Timestamp float64 `json:"timestamp"`
}

// BattleRecord is the persisted document for one battle.
type BattleRecord struct {
	UUID            string                    `json:"uuid"`
	CreateTime      time.Time                 `json:"create_time"`
	GatewayGitHash  string                    `json:"gateway_git_hash,omitempty"`
	Session         Session                   `json:"session"`
	User            User                      `json:"user"`
	PromptText      string                    `json:"prompt_text"`
	PromptDetailed  DetailedTextToMusicPrompt `json:"prompt_detailed"`
	PromptPrebaked  *string                   `json:"prompt_prebaked,omitempty"`

	ASystemKey SystemKey        `json:"a_system_key"`
	BSystemKey SystemKey        `json:"b_system_key"`
	AMetadata  ResponseMetadata `json:"a_metadata"`
	BMetadata  ResponseMetadata `json:"b_metadata"`
	AAudioURI  string           `json:"a_audio_uri"`
	BAudioURI  string           `json:"b_audio_uri"`
	AGenMs     int64            `json:"a_gen_ms"`
	BGenMs     int64            `json:"b_gen_ms"`

	Vote       *Vote  `json:"vote,omitempty"`
	VoteUser   *User  `json:"vote_user,omitempty"`
	VoteSession *Session `json:"vote_session,omitempty"`

	Timings []TimingEvent `json:"timings,omitempty"`
}

// NewBattleRecord stamps a fresh uuid and create_time.
func NewBattleRecord() BattleRecord {
	return BattleRecord{
		UUID:       uuid.NewString(),
		CreateTime: time.Now().UTC(),
	}
}

// Anonymized returns a copy of the record safe to hand to a client before
// a vote is recorded: system identities and timing breadcrumbs are
// stripped.
func (b BattleRecord) Anonymized() BattleRecord {
	out := b
	out.ASystemKey = SystemKey{SystemTag: "anonymized", VariantTag: "anonymized"}
	out.BSystemKey = SystemKey{SystemTag: "anonymized", VariantTag: "anonymized"}
	out.AMetadata = b.AMetadata.Anonymized()
	out.BMetadata = b.BMetadata.Anonymized()
	out.Timings = nil
	return out
}
