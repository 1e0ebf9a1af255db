package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives call transcripts to S3.
type Store struct {
	bucket string
	client S3API
	logger *logging.Logger
	now    func() time.Time
}

// NewStore creates an archive Store. With an empty bucket every call is a no-op.
func NewStore(client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, client: client, logger: logger, now: time.Now}
}

// Enabled reports whether archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.client != nil
}

// ObjectKey returns the key a transcript for callID ended at t is written to.
func ObjectKey(callID string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("calls/v1/by-date/%d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), callID)
}

func manifestKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("calls/v1/manifests/%d-%02d.jsonl", t.Year(), t.Month())
}

// ArchiveTranscript redacts rec and writes it as JSON, then appends it to the
// monthly manifest. A manifest failure is logged, not returned.
func (s *Store) ArchiveTranscript(ctx context.Context, rec *TranscriptRecord) (string, error) {
	if !s.Enabled() || rec == nil {
		return "", nil
	}
	if rec.CallID == "" {
		return "", errors.New("archive: call id required")
	}

	cp := *rec
	cp.Turns = append([]Turn(nil), rec.Turns...)
	if cp.Version == "" {
		cp.Version = recordVersion
	}
	redactRecord(&cp)

	ended := cp.EndedAt
	if ended.IsZero() {
		ended = s.now()
	}

	data, err := json.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("archive: marshal transcript: %w", err)
	}
	key := ObjectKey(cp.CallID, ended)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Info("archived call transcript", "call_id", cp.CallID, "s3_key", key, "turns", len(cp.Turns))

	entry := ManifestEntry{
		CallID:          cp.CallID,
		S3Key:           key,
		CallType:        cp.CallType,
		EndedReason:     cp.EndedReason,
		DurationSeconds: cp.DurationSeconds,
		ArchivedAt:      s.now().UTC().Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, ended, entry); err != nil {
		s.logger.Warn("failed to append call manifest", "error", err, "call_id", cp.CallID)
	}
	return key, nil
}

// appendManifest does a read-modify-write of the monthly JSONL index.
func (s *Store) appendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	key := manifestKey(at)

	var buf bytes.Buffer
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("archive: read manifest: %w", readErr)
		}
		buf.Write(existing)
		if len(existing) > 0 && existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	case isNoSuchKey(err):
		s.logger.Debug("starting new call manifest", "key", key)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}
	buf.Write(line)
	buf.WriteByte('\n')

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	}); err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}
