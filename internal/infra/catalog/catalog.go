// Package catalog provides the read-only album catalog loaded from YAML.
package catalog

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/trackdeck/internal/domain/album"
)

// ErrAlbumNotFound is returned when no album has the requested slug.
var ErrAlbumNotFound = errors.New("album not found")

// file is the on-disk catalog layout.
type file struct {
	Albums []album.Album `yaml:"albums" validate:"required,min=1,dive"`
}

// Catalog is an immutable, slug-indexed set of albums.
type Catalog struct {
	albums []album.Album
	bySlug map[string]int
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %s", path)
	}
	zlog.Debug().Msgf("catalog: loaded %d albums from %s", len(c.albums), path)
	return c, nil
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}

	validate := validator.New()
	if err := validate.Struct(f); err != nil {
		return nil, errors.Wrap(err, "catalog validation failed")
	}

	c := &Catalog{
		albums: f.Albums,
		bySlug: make(map[string]int, len(f.Albums)),
	}
	for i, a := range f.Albums {
		if _, dup := c.bySlug[a.Slug]; dup {
			return nil, errors.Newf("duplicate album slug %q", a.Slug)
		}
		c.bySlug[a.Slug] = i
	}
	return c, nil
}

// FindAlbum returns the album with the given slug.
func (c *Catalog) FindAlbum(slug string) (*album.Album, error) {
	i, ok := c.bySlug[slug]
	if !ok {
		return nil, errors.Wrapf(ErrAlbumNotFound, "slug %q", slug)
	}
	a := c.albums[i]
	a.Tracks = append(a.Tracks[:0:0], a.Tracks...)
	return &a, nil
}

// Albums returns the albums in file order.
func (c *Catalog) Albums() []album.Album {
	result := make([]album.Album, len(c.albums))
	copy(result, c.albums)
	return result
}
