package files

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
)

var (
	ErrNotFound      = errors.New("asset not found")
	ErrInvalidName   = errors.New("invalid asset name")
	ErrNameExhausted = errors.New("could not allocate a unique asset name")
)

// Store is name-addressed, write-once byte storage for one kind of asset.
//
// Add never overwrites and never reuses a name that was removed earlier in
// the process. List returns image names only, sorted descending. Remove is the
// only mutation after creation.
type Store interface {
	Add(ctx context.Context, content []byte, declared string) (string, error)
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (Object, error)
	Address(name string) string
}

// Object is a stored asset as read back from a Store.
type Object struct {
	Name    string
	Content []byte
	ModTime time.Time
	// Digest is the hex BLAKE3-256 of Content.
	Digest string
}

func newObject(name string, content []byte, mod time.Time) Object {
	sum := blake3.Sum256(content)
	return Object{
		Name:    name,
		Content: content,
		ModTime: mod,
		Digest:  hex.EncodeToString(sum[:]),
	}
}
