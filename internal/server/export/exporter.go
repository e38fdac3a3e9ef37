// Package export writes conversation transcripts to S3 compatible object
// storage and hands out short-lived download links.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

// LinkValidity is how long a presigned transcript link stays usable.
const LinkValidity = 15 * time.Minute

// ErrDisabled is returned by a nil Exporter.
var ErrDisabled = errors.New("transcript export is not configured")

// Source reads the conversation being exported on behalf of its owner.
type Source interface {
	GetConversation(ctx context.Context, convID, userID string) (*models.Conversation, error)
	GetMessages(ctx context.Context, convID, userID string) ([]models.Message, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Settings struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// Result locates an exported transcript.
type Result struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

type Exporter struct {
	source    Source
	putter    objectPutter
	presigner getPresigner
	bucket    string
	now       func() time.Time
}

// New builds an Exporter backed by an S3 client. A custom BaseEndpoint
// switches to path-style addressing, which MinIO needs.
func New(ctx context.Context, source Source, s Settings) (*Exporter, error) {
	if s.Bucket == "" {
		return nil, errors.New("export: empty bucket")
	}
	region := s.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if s.AccessKey != "" && s.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("export: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newExporter(source, client, s3.NewPresignClient(client), s.Bucket), nil
}

func newExporter(source Source, putter objectPutter, presigner getPresigner, bucket string) *Exporter {
	return &Exporter{
		source:    source,
		putter:    putter,
		presigner: presigner,
		bucket:    bucket,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type transcriptMessage struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type transcript struct {
	ConversationID string              `json:"conversationId"`
	Title          string              `json:"title"`
	CreatedAt      time.Time           `json:"createdAt"`
	ExportedAt     time.Time           `json:"exportedAt"`
	Messages       []transcriptMessage `json:"messages"`
}

// Key returns the object key of a transcript exported at t.
func Key(userID, convID string, t time.Time) string {
	return fmt.Sprintf("transcripts/%s/%s/%s.json", userID, convID, t.UTC().Format("20060102T150405Z"))
}

// Export uploads the transcript of convID and returns a presigned link to it.
// Conversations not owned by userID yield common.ErrorNotFound from the source.
func (e *Exporter) Export(ctx context.Context, userID, convID string) (*Result, error) {
	if e == nil {
		return nil, ErrDisabled
	}

	conv, err := e.source.GetConversation(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := e.source.GetMessages(ctx, convID, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	t := transcript{
		ConversationID: conv.ID,
		Title:          conv.Title,
		CreatedAt:      conv.CreatedAt,
		ExportedAt:     now,
		Messages:       make([]transcriptMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		t.Messages = append(t.Messages, transcriptMessage{Seq: m.Seq, Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
	}

	body, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode transcript: %w", err)
	}

	key := Key(userID, convID, now)
	_, err = e.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("export: put object: %w", err)
	}

	req, err := e.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(LinkValidity))
	if err != nil {
		return nil, fmt.Errorf("export: presign: %w", err)
	}

	return &Result{Key: key, URL: req.URL, ExpiresAt: now.Add(LinkValidity)}, nil
}
