package archive

import "time"

// TranscriptRecord is the end-of-call report written to the archive bucket.
type TranscriptRecord struct {
	Version         string    `json:"version"`
	CallID          string    `json:"call_id"`
	ClinicID        string    `json:"clinic_id"`
	CallerHash      string    `json:"caller_hash,omitempty"`
	CallType        string    `json:"call_type"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int       `json:"duration_seconds"`
	EndedReason     string    `json:"ended_reason,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	Transcript      string    `json:"transcript"`
	Turns           []Turn    `json:"turns,omitempty"`
}

// Turn is one utterance in a call.
type Turn struct {
	Role    string  `json:"role"`
	Text    string  `json:"text"`
	Seconds float64 `json:"seconds,omitempty"` // offset from call start
}

// ManifestEntry is one JSONL line in the monthly index of archived calls.
type ManifestEntry struct {
	CallID          string `json:"call_id"`
	S3Key           string `json:"s3_key"`
	CallType        string `json:"call_type"`
	EndedReason     string `json:"ended_reason,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	ArchivedAt      string `json:"archived_at"`
}

const recordVersion = "1"
