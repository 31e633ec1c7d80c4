// Package tweet posts booth photos to Twitter. A small TCP bridge receives
// a photo URL per connection, downloads the image and posts it.
package tweet

import (
	"context"
	"errors"

	"github.com/fraxinas/photobooth/internal/debug"
)

// ErrNoCredentials is returned when the OAuth1 credentials are incomplete.
var ErrNoCredentials = errors.New("tweet: incomplete twitter credentials")

// Poster publishes an image with a status text.
type Poster interface {
	// Verify checks the credentials and returns the account name.
	Verify(ctx context.Context) (string, error)
	// Post uploads image and creates a post. It returns the post id.
	Post(ctx context.Context, status string, image []byte, mediaType string) (string, error)
}

// LogPoster only logs what would be posted.
type LogPoster struct{}

func (LogPoster) Verify(context.Context) (string, error) { return "dry-run", nil }

func (LogPoster) Post(_ context.Context, status string, image []byte, mediaType string) (string, error) {
	debug.Info("Tweet [dry-run]: %q with %d byte %s", status, len(image), mediaType)
	return "dry-run", nil
}
