package tweet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/dghubble/oauth1"

	"github.com/fraxinas/photobooth/internal/config"
	"github.com/fraxinas/photobooth/internal/debug"
)

// Endpoints are the Twitter API URLs used by the poster.
type Endpoints struct {
	Verify string
	Upload string
	Post   string
}

// DefaultEndpoints are the public Twitter API endpoints.
var DefaultEndpoints = Endpoints{
	Verify: "https://api.twitter.com/1.1/account/verify_credentials.json",
	Upload: "https://upload.twitter.com/1.1/media/upload.json",
	Post:   "https://api.twitter.com/2/tweets",
}

// Twitter posts through the Twitter API with OAuth1 user credentials.
type Twitter struct {
	client    *http.Client
	endpoints Endpoints
}

// NewTwitter builds a signed HTTP client for creds.
func NewTwitter(ctx context.Context, creds config.TwitterCredentials, ep Endpoints) (*Twitter, error) {
	if !creds.Complete() {
		return nil, ErrNoCredentials
	}
	if ep == (Endpoints{}) {
		ep = DefaultEndpoints
	}
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	return &Twitter{client: cfg.Client(ctx, token), endpoints: ep}, nil
}

// Verify calls account/verify_credentials.
func (t *Twitter) Verify(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoints.Verify, nil)
	if err != nil {
		return "", err
	}
	var user struct {
		ScreenName string `json:"screen_name"`
	}
	if err := t.do(req, &user); err != nil {
		return "", fmt.Errorf("verify credentials: %w", err)
	}
	debug.Info("Twitter: authenticated as @%s", user.ScreenName)
	return user.ScreenName, nil
}

// Post uploads the image and creates a post referencing it.
func (t *Twitter) Post(ctx context.Context, status string, image []byte, mediaType string) (string, error) {
	mediaID, err := t.upload(ctx, image, mediaType)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"text":  status,
		"media": map[string]any{"media_ids": []string{mediaID}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoints.Post, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.do(req, &created); err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	debug.Info("Twitter: posted %s", created.Data.ID)
	return created.Data.ID, nil
}

func (t *Twitter) upload(ctx context.Context, image []byte, mediaType string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="media"; filename="photo.jpg"`)
	h.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(image); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoints.Upload, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var media struct {
		MediaID string `json:"media_id_string"`
	}
	if err := t.do(req, &media); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if media.MediaID == "" {
		return "", fmt.Errorf("upload media: no media id in response")
	}
	return media.MediaID, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
}

func (t *Twitter) do(req *http.Request, v any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return json.Unmarshal(data, v)
}
