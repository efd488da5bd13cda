package files

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/harrylevesque/photobooth/internal/crypto"
)

// DefaultExt is used when the declared extension is missing or not an image type.
const DefaultExt = ".png"

// maxNameAttempts bounds how many fresh candidates Add draws before giving up.
const maxNameAttempts = 8

var imageNamePattern = regexp.MustCompile(`(?i)\.(png|webp|jpg|jpeg)$`)

var imageExts = map[string]bool{
	".png":  true,
	".webp": true,
	".jpg":  true,
	".jpeg": true,
}

// Layout describes one logical store: how its names are minted and the
// public path prefix under which they are served.
type Layout struct {
	// Bucket is the directory (or bbolt bucket) holding the assets.
	Bucket string
	// Prefix starts every generated name, e.g. "frame".
	Prefix string
	// RandomBytes is the size of the random suffix before hex encoding.
	RandomBytes int
	// URLPrefix is the public path that names are appended to.
	URLPrefix string
}

var (
	OverlayLayout = Layout{Bucket: "overlays", Prefix: "frame", RandomBytes: 8, URLPrefix: "/uploads/overlays/"}
	PhotoLayout   = Layout{Bucket: "photos", Prefix: "photo", RandomBytes: 10, URLPrefix: "/uploads/photos/"}
)

// Address returns the public path of name. It never touches storage.
func (l Layout) Address(name string) string {
	return l.URLPrefix + url.PathEscape(name)
}

// NormalizeExt returns the lower-cased extension of declared (a filename or a
// bare ".ext") when it is an accepted image extension, otherwise DefaultExt.
func NormalizeExt(declared string) string {
	ext := strings.ToLower(filepath.Ext(declared))
	if imageExts[ext] {
		return ext
	}
	return DefaultExt
}

// HasImageExt reports whether declared carries an accepted image extension.
func HasImageExt(declared string) bool {
	return imageExts[strings.ToLower(filepath.Ext(declared))]
}

// IsImageName reports whether name would be returned by List.
func IsImageName(name string) bool {
	return imageNamePattern.MatchString(name)
}

// Namer mints names of the form <prefix>_<unix ms>_<hex suffix><ext>.
type Namer struct {
	layout Layout
	now    func() time.Time
}

func NewNamer(layout Layout) *Namer {
	return &Namer{layout: layout, now: time.Now}
}

// Next returns a fresh candidate name. Callers still have to check it
// against the store.
func (n *Namer) Next(declared string) (string, error) {
	suffix, err := crypto.RandomHex(n.layout.RandomBytes)
	if err != nil {
		return "", fmt.Errorf("generate name suffix: %w", err)
	}
	return fmt.Sprintf("%s_%d_%s%s", n.layout.Prefix, n.now().UnixMilli(), suffix, NormalizeExt(declared)), nil
}

// checkName rejects anything that is not a plain file name inside a store:
// empty names, hidden entries, separators, parent references, absolute paths.
func checkName(name string) error {
	switch {
	case name == "",
		strings.HasPrefix(name, "."),
		strings.ContainsAny(name, `/\`),
		strings.ContainsRune(name, 0),
		filepath.IsAbs(name),
		filepath.VolumeName(name) != "":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// nameSet remembers names removed during the process lifetime so they are
// never handed out again.
type nameSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func (s *nameSet) add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[name] = struct{}{}
}

func (s *nameSet) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.names[name]
	return ok
}
