package docstore

import (
	"fmt"
	"strings"
)

// CollectionRef addresses a collection, e.g. "rooms" or "rooms/{roomId}/clocks".
type CollectionRef struct {
	path string
}

// DocumentRef addresses a single document inside a collection.
type DocumentRef struct {
	collection CollectionRef
	id         string
}

// Collection builds a collection reference from alternating collection/document
// segments. The number of segments must be odd.
func Collection(segments ...string) CollectionRef {
	return CollectionRef{path: strings.Join(segments, "/")}
}

// ParseDocumentPath parses a full document path such as "rooms/abc/clocks/xyz".
func ParseDocumentPath(p string) (DocumentRef, error) {
	segments := strings.Split(p, "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return DocumentRef{}, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, p)
	}
	ref := Collection(segments[:len(segments)-1]...).Doc(segments[len(segments)-1])
	if err := ref.Validate(); err != nil {
		return DocumentRef{}, err
	}
	return ref, nil
}

// Path returns the slash separated collection path.
func (c CollectionRef) Path() string { return c.path }

// Doc returns a reference to the document with the given id in this collection.
func (c CollectionRef) Doc(id string) DocumentRef {
	return DocumentRef{collection: c, id: id}
}

// Parent returns the document that owns a sub-collection. Top level collections
// have no parent.
func (c CollectionRef) Parent() (DocumentRef, bool) {
	i := strings.LastIndex(c.path, "/")
	if i < 0 {
		return DocumentRef{}, false
	}
	ref, err := ParseDocumentPath(c.path[:i])
	if err != nil {
		return DocumentRef{}, false
	}
	return ref, true
}

// Validate checks that the path has an odd number of non-empty segments.
func (c CollectionRef) Validate() error {
	segments := strings.Split(c.path, "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, c.path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, c.path)
		}
	}
	return nil
}

func (c CollectionRef) String() string { return c.path }

// ID returns the document id.
func (d DocumentRef) ID() string { return d.id }

// Collection returns the collection holding this document.
func (d DocumentRef) Collection() CollectionRef { return d.collection }

// Path returns the full slash separated document path.
func (d DocumentRef) Path() string {
	return d.collection.path + "/" + d.id
}

// Sub returns a sub-collection of this document.
func (d DocumentRef) Sub(name string) CollectionRef {
	return CollectionRef{path: d.Path() + "/" + name}
}

// IsZero reports whether the reference was never set.
func (d DocumentRef) IsZero() bool {
	return d.id == "" && d.collection.path == ""
}

// Validate checks the collection path and the document id.
func (d DocumentRef) Validate() error {
	if err := d.collection.Validate(); err != nil {
		return err
	}
	if d.id == "" || strings.Contains(d.id, "/") {
		return fmt.Errorf("%w: invalid document id %q", ErrInvalidPath, d.id)
	}
	return nil
}

func (d DocumentRef) String() string { return d.Path() }

// collectionOf returns the collection part of a document path.
func collectionOf(docPath string) string {
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return ""
	}
	return docPath[:i]
}
