package storage

import "context"

// Cover is the finished artifact plus the metadata the backend records
// alongside it.
type Cover struct {
	Data     []byte
	Title    string
	Subtitle string
	ClientID string
	Width    int
	Height   int
	Params   map[string]any
}

// Backend persists finished covers. Implementations return a durable
// result reference on success.
type Backend interface {
	SaveCover(ctx context.Context, cover Cover) (string, error)
}
