package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

var ErrNotConfigured = errors.New("youtube upload credentials not configured")

// Credentials authorize uploads on behalf of a channel owner.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c Credentials) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Publisher uploads artifacts as public videos.
type Publisher struct {
	creds     Credentials
	uploadURL string
	tokenURL  string
	privacy   string
	base      *http.Client
}

type PublisherOption func(*Publisher)

func WithUploadURL(u string) PublisherOption {
	return func(p *Publisher) { p.uploadURL = u }
}

func WithTokenURL(u string) PublisherOption {
	return func(p *Publisher) { p.tokenURL = u }
}

// WithBaseClient sets the client used for both token refresh and upload.
func WithBaseClient(c *http.Client) PublisherOption {
	return func(p *Publisher) { p.base = c }
}

// WithPrivacy sets the privacyStatus of uploaded videos. Default "public".
func WithPrivacy(status string) PublisherOption {
	return func(p *Publisher) { p.privacy = status }
}

func NewPublisher(creds Credentials, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		creds:     creds,
		uploadURL: defaultUploadURL,
		tokenURL:  defaultTokenURL,
		privacy:   "public",
		base:      http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Publisher) httpClient(ctx context.Context) *http.Client {
	cfg := &oauth2.Config{
		ClientID:     p.creds.ClientID,
		ClientSecret: p.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  defaultAuthURL,
			TokenURL: p.tokenURL,
		},
		Scopes: []string{"https://www.googleapis.com/auth/youtube.upload"},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.base)
	return cfg.Client(ctx, &oauth2.Token{RefreshToken: p.creds.RefreshToken})
}

type uploadBody struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
		CategoryID  string   `json:"categoryId"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

// Publish uploads artifact with md and returns its watch URL.
func (p *Publisher) Publish(ctx context.Context, artifact string, md pipeline.Metadata) (string, error) {
	if !p.creds.complete() {
		return "", ErrNotConfigured
	}

	f, err := os.Open(artifact)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	var meta uploadBody
	meta.Snippet.Title = md.Title
	meta.Snippet.Description = md.Description
	meta.Snippet.Tags = md.Tags
	meta.Snippet.CategoryID = md.CategoryID
	meta.Status.PrivacyStatus = p.privacy

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, meta, f, filepath.Base(artifact)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.uploadURL+"?uploadType=multipart&part=snippet,status", pr)
	if err != nil {
		_ = pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	res, err := p.httpClient(ctx).Do(req) //nolint:gosec // URL from internal config
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("upload video: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	var out struct {
		ID string `json:"id"`
	}
	if err := decodeResponse(res, &out); err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("upload video: response has no video id")
	}

	watch := "https://www.youtube.com/watch?v=" + out.ID
	slog.Info("youtube: uploaded video", "artifact", artifact, "url", watch)
	return watch, nil
}

func writeMultipart(mw *multipart.Writer, meta uploadBody, video io.Reader, name string) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return err
	}
	if err := json.NewEncoder(part).Encode(meta); err != nil {
		return err
	}

	part, err = mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":        {"video/mp4"},
		"Content-Disposition": {fmt.Sprintf(`attachment; filename=%q`, name)},
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, video); err != nil {
		return err
	}
	return mw.Close()
}
