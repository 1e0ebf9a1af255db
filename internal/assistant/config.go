// Package assistant holds the voice assistant configuration and the static
// clinic facts the assistant reads back to callers.
package assistant

import (
	_ "embed"
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

//go:embed prompts/receptionist.txt
var receptionistPrompt string

// Voice selects the synthesized voice.
type Voice struct {
	VoiceID  string `json:"voiceId"`
	Provider string `json:"provider"`
}

// Message is one entry of the model's seed conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model selects the language model and its system prompt.
type Model struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Provider string    `json:"provider"`
}

// Transcriber selects the speech-to-text engine.
type Transcriber struct {
	Model    string `json:"model"`
	Language string `json:"language"`
	Provider string `json:"provider"`
}

// Config is the virtual receptionist definition pushed to the voice platform.
type Config struct {
	ID                   string      `json:"id"`
	OrgID                string      `json:"orgId"`
	Name                 string      `json:"name"`
	Voice                Voice       `json:"voice"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
	Model                Model       `json:"model"`
	FirstMessage         string      `json:"firstMessage"`
	VoicemailMessage     string      `json:"voicemailMessage"`
	EndCallMessage       string      `json:"endCallMessage"`
	Transcriber          Transcriber `json:"transcriber"`
	IsServerURLSecretSet bool        `json:"isServerUrlSecretSet"`
	ServerURL            string      `json:"serverUrl,omitempty"`

	// Extra carries top-level keys the platform accepts that have no field
	// here. They round-trip through JSON unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

type plainConfig Config

var configKeys = func() map[string]struct{} {
	keys := make(map[string]struct{})
	t := reflect.TypeOf(plainConfig{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}()

func (c Config) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(plainConfig(c))
	if err != nil || len(c.Extra) == 0 {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, known := configKeys[k]; !known {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var plain plainConfig
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	plain.Extra = nil
	for k, v := range fields {
		if _, known := configKeys[k]; known {
			continue
		}
		if plain.Extra == nil {
			plain.Extra = make(map[string]json.RawMessage)
		}
		plain.Extra[k] = v
	}
	*c = Config(plain)
	return nil
}

// Clone returns a deep copy so callers cannot mutate shared message slices.
func (c Config) Clone() Config {
	c.Model.Messages = append([]Message(nil), c.Model.Messages...)
	if c.Extra != nil {
		extra := make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			extra[k] = append(json.RawMessage(nil), v...)
		}
		c.Extra = extra
	}
	return c
}

// Default returns the receptionist the service ships with.
func Default() Config {
	return Config{
		ID:    "a80f5f65-73a6-4a34-8461-04edd66cd33d",
		OrgID: "902a1bc6-579f-453a-b576-8d7f4a4d66c3",
		Name:  "Shreya",
		Voice: Voice{
			VoiceID:  "Elliot",
			Provider: "vapi",
		},
		CreatedAt: time.Date(2025, 8, 22, 13, 10, 7, 282_000_000, time.UTC),
		UpdatedAt: time.Date(2025, 8, 22, 13, 16, 45, 793_000_000, time.UTC),
		Model: Model{
			Model:    "gpt-4o",
			Provider: "openai",
			Messages: []Message{{Role: "system", Content: strings.TrimSpace(receptionistPrompt)}},
		},
		FirstMessage:     "Hello.",
		VoicemailMessage: "Please call back when you're available.",
		EndCallMessage:   "Goodbye.",
		Transcriber: Transcriber{
			Model:    "nova-2",
			Language: "en",
			Provider: "deepgram",
		},
	}
}

// Timings are the human-readable opening hours.
type Timings struct {
	Weekdays string `json:"weekdays"`
	Saturday string `json:"saturday"`
	Sunday   string `json:"sunday"`
}

// Location is how callers reach the clinic.
type Location struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// ClinicInfo is the static fact sheet returned by getClinicInfo.
type ClinicInfo struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	Timings            Timings  `json:"timings"`
	Location           Location `json:"location"`
	Services           []string `json:"services"`
	ConsultationFee    string   `json:"consultationFee"`
	EmergencyAvailable bool     `json:"emergencyAvailable"`
}

// DefaultClinicInfo returns the Sai Clinic fact sheet.
func DefaultClinicInfo() ClinicInfo {
	return ClinicInfo{
		Name: "Sai Clinic",
		Type: "Dental Clinic",
		Timings: Timings{
			Weekdays: "9:00 AM - 6:00 PM",
			Saturday: "9:00 AM - 2:00 PM",
			Sunday:   "Closed",
		},
		Location: Location{
			Address: "123 Main Street, City, State 12345",
			Phone:   "+1-234-567-8900",
			Email:   "info@saiclinic.com",
		},
		Services: []string{
			"Dental Cleaning",
			"Fillings",
			"Root Canal",
			"Braces",
			"Dental Implants",
			"Teeth Whitening",
			"Oral Surgery",
			"Emergency Dental Care",
		},
		ConsultationFee:    "$50",
		EmergencyAvailable: true,
	}
}

// Clone returns a copy with its own services slice.
func (c ClinicInfo) Clone() ClinicInfo {
	c.Services = append([]string(nil), c.Services...)
	return c
}
