package allocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blueshift-gg/solgov/utils/pkg/retry"
)

// maxManifestBytes caps how much of a remote manifest is read.
const maxManifestBytes = 256 << 20

// ObjectGetter is the subset of the S3 client used to fetch manifests.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type LoaderConfig struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Retry      retry.Config

	// S3 is used for s3:// sources. If nil, a client is built from the
	// default AWS credential chain on first use.
	S3 ObjectGetter
}

func (cfg *LoaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

// Loader fetches manifests from a local path, an http(s) URL or an s3://bucket/key.
type Loader struct {
	log *slog.Logger
	cfg LoaderConfig

	s3Once sync.Once
	s3     ObjectGetter
	s3Err  error
}

func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{log: cfg.Logger, cfg: cfg, s3: cfg.S3}, nil
}

// Load reads and parses the manifest at source. All failures wrap ErrManifestLoad.
func (l *Loader) Load(ctx context.Context, source string) (*Manifest, error) {
	start := time.Now()
	data, err := l.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrManifestLoad, source, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l.log.Info("allocation: manifest loaded",
		"source", source,
		"claimants", len(m.TreeNodes),
		"bytes", len(data),
		"duration", time.Since(start).String())
	return m, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.readHTTP(ctx, source)
	case strings.HasPrefix(source, "s3://"):
		return l.readS3(ctx, source)
	default:
		return os.ReadFile(strings.TrimPrefix(source, "file://"))
	}
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string   { return fmt.Sprintf("unexpected status %d", e.code) }
func (e *httpStatusError) StatusCode() int { return e.code }

func (l *Loader) readHTTP(ctx context.Context, url string) ([]byte, error) {
	rcfg := l.cfg.Retry
	rcfg.OnRetry = func(next int, backoff time.Duration, err error) {
		l.log.Warn("allocation: retrying manifest fetch", "attempt", next, "backoff", backoff.String(), "error", err)
	}
	return retry.DoValue(ctx, rcfg, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := l.cfg.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, &httpStatusError{code: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	})
}

func (l *Loader) readS3(ctx context.Context, source string) ([]byte, error) {
	bucket, key, err := parseS3URL(source)
	if err != nil {
		return nil, err
	}
	client, err := l.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, maxManifestBytes))
}

func (l *Loader) s3Client(ctx context.Context) (ObjectGetter, error) {
	l.s3Once.Do(func() {
		if l.s3 != nil {
			return
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			l.s3Err = fmt.Errorf("failed to load aws config: %w", err)
			return
		}
		l.s3 = s3.NewFromConfig(awsCfg)
	})
	return l.s3, l.s3Err
}

func parseS3URL(source string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(source, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q, expected s3://bucket/key", source)
	}
	return bucket, key, nil
}
