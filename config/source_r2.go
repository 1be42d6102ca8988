package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Source locates progression tables stored in a Cloudflare R2 bucket.
type R2Source struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// Endpoint overrides the account endpoint (tests, S3-compatible stores).
	Endpoint string
}

func (r R2Source) endpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.AccountID)
}

func (r R2Source) client(ctx context.Context) (*s3.Client, error) {
	if r.Bucket == "" || r.AccessKeyID == "" || r.AccessKeySecret == "" {
		return nil, errors.New("R2 bucket and credentials must be set")
	}
	if r.AccountID == "" && r.Endpoint == "" {
		return nil, errors.New("CLOUDFLARE_ACCOUNT_ID not set")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			r.AccessKeyID, r.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(r.endpoint())
		o.UsePathStyle = true
	}), nil
}

// Fetch downloads the object stored under key.
func (r R2Source) Fetch(ctx context.Context, key string) ([]byte, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from R2: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from R2: %w", key, err)
	}
	return data, nil
}

// LoadR2 reads progression tables from an R2 object.
func LoadR2(ctx context.Context, src R2Source, key string) (*Progression, error) {
	data, err := src.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Resolve picks the progression tables for env: an R2 object when
// PROGRESSION_CONFIG_R2_KEY is set, else a local file when PROGRESSION_CONFIG
// is set, else the built-in defaults. CALENDAR_TZ is applied last.
func Resolve(ctx context.Context, env *Env) (*Progression, error) {
	var (
		p   *Progression
		err error
	)
	switch {
	case env.ProgressionR2Key != "":
		log.Printf("📦 [CONFIG] Loading progression tables from R2 key %s", env.ProgressionR2Key)
		p, err = LoadR2(ctx, env.R2, env.ProgressionR2Key)
	case env.ProgressionFile != "":
		log.Printf("📄 [CONFIG] Loading progression tables from %s", env.ProgressionFile)
		p, err = LoadFile(env.ProgressionFile)
	default:
		log.Println("📋 [CONFIG] Using built-in progression tables")
		p = Default()
	}
	if err != nil {
		return nil, err
	}

	if env.CalendarTZ != "" && env.CalendarTZ != p.Timezone {
		return p.WithTimezone(env.CalendarTZ)
	}
	return p, nil
}
