package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = body
	f.puts = append(f.puts, *in.Key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestArchiveTranscriptWritesRecordAndManifest(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "calls-bucket", nil)
	ended := time.Date(2025, 1, 10, 15, 4, 0, 0, time.UTC)

	key, err := store.ArchiveTranscript(context.Background(), &TranscriptRecord{
		CallID:          "vapi-1",
		CallType:        "appointment",
		EndedAt:         ended,
		DurationSeconds: 95,
		Transcript:      "User: reach me at jane@example.com",
		Turns:           []Turn{{Role: "user", Text: "my number is +15550100100"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "calls/v1/by-date/2025/01/10/vapi-1.json", key)

	var rec TranscriptRecord
	require.NoError(t, json.Unmarshal(fake.objects[key], &rec))
	assert.Equal(t, "1", rec.Version)
	assert.Equal(t, "User: reach me at [EMAIL]", rec.Transcript)
	assert.Equal(t, "my number is [PHONE]", rec.Turns[0].Text)

	manifest := string(fake.objects["calls/v1/manifests/2025-01.jsonl"])
	assert.Equal(t, 1, strings.Count(manifest, "\n"))
	assert.Contains(t, manifest, `"call_id":"vapi-1"`)

	_, err = store.ArchiveTranscript(context.Background(), &TranscriptRecord{CallID: "vapi-2", EndedAt: ended})
	require.NoError(t, err)
	manifest = string(fake.objects["calls/v1/manifests/2025-01.jsonl"])
	assert.Equal(t, 2, strings.Count(manifest, "\n"))
}

func TestArchiveTranscriptLeavesInputUntouched(t *testing.T) {
	store := NewStore(newFakeS3(), "calls-bucket", nil)
	rec := &TranscriptRecord{CallID: "vapi-3", Turns: []Turn{{Role: "user", Text: "jane@example.com"}}}

	_, err := store.ArchiveTranscript(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", rec.Turns[0].Text)
}

func TestArchiveTranscriptDisabled(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "", nil)
	assert.False(t, store.Enabled())

	key, err := store.ArchiveTranscript(context.Background(), &TranscriptRecord{CallID: "x"})
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, fake.puts)

	var nilStore *Store
	assert.False(t, nilStore.Enabled())
}

func TestArchiveTranscriptErrors(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "calls-bucket", nil)

	_, err := store.ArchiveTranscript(context.Background(), &TranscriptRecord{})
	require.Error(t, err)

	fake.putErr = errors.New("access denied")
	_, err = store.ArchiveTranscript(context.Background(), &TranscriptRecord{CallID: "vapi-4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.putErr)
}
