// Package pages turns the scanned page images of an exam folder into an
// ordered list of signed URLs.
package pages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"exam_review_backend/storage"

	"golang.org/x/sync/errgroup"
)

const (
	FolderPrefix = "exam-"
	ListLimit    = 200
	URLExpiry    = 300 * time.Second
)

// Extensions in priority order. The first one with any match is the page set.
var Extensions = []string{"jpg", "png", "webp"}

var (
	ErrMissingParameter   = errors.New("missing exam id")
	ErrStorageUnavailable = errors.New("failed to read storage folder")
	ErrNoPagesFound       = errors.New("no pages found")
)

type FolderNotFoundError struct {
	Folder string
}

func (e *FolderNotFoundError) Error() string {
	return "Folder not found: " + e.Folder
}

// Result holds the resolved page set. Files and Pages are index aligned.
type Result struct {
	Folder string
	Files  []string
	Pages  []string
}

type pageFilter struct {
	ext     string
	pattern *regexp.Regexp
}

// page keeps the index as its digit string so any length sorts correctly.
type page struct {
	index string
	name  string
}

// indexLess compares decimal digit strings numerically.
func indexLess(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

type Resolver struct {
	bucket  storage.Bucket
	filters []pageFilter
}

func NewResolver(bucket storage.Bucket) *Resolver {
	filters := make([]pageFilter, 0, len(Extensions))
	for _, ext := range Extensions {
		filters = append(filters, pageFilter{
			ext:     ext,
			pattern: regexp.MustCompile(`^page-(\d+)\.` + regexp.QuoteMeta(ext) + `$`),
		})
	}
	return &Resolver{bucket: bucket, filters: filters}
}

func FolderFor(examID string) string {
	return FolderPrefix + examID
}

// Resolve lists the exam folder, picks the page set and signs every page.
// A signing failure fails the whole call.
func (r *Resolver) Resolve(ctx context.Context, examID string) (*Result, error) {
	examID = strings.TrimSpace(examID)
	if examID == "" {
		return nil, ErrMissingParameter
	}

	folder := FolderFor(examID)
	objects, err := r.bucket.List(ctx, folder, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if len(objects) == 0 {
		return nil, &FolderNotFoundError{Folder: folder}
	}

	matched := r.match(objects)
	if len(matched) == 0 {
		return nil, ErrNoPagesFound
	}

	result := &Result{
		Folder: folder,
		Files:  make([]string, len(matched)),
		Pages:  make([]string, len(matched)),
	}
	for i, p := range matched {
		result.Files[i] = p.name
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range result.Files {
		g.Go(func() error {
			signed, err := r.bucket.SignedURL(gctx, folder+"/"+name, URLExpiry)
			if err != nil {
				return fmt.Errorf("signing %s: %w", name, err)
			}
			result.Pages[i] = signed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// match returns the pages of the first extension that has any, sorted by index.
func (r *Resolver) match(objects []storage.Object) []page {
	for _, f := range r.filters {
		var found []page
		for _, object := range objects {
			m := f.pattern.FindStringSubmatch(object.Name)
			if m == nil {
				continue
			}
			found = append(found, page{index: m[1], name: object.Name})
		}
		if len(found) == 0 {
			continue
		}
		sort.SliceStable(found, func(i, j int) bool {
			return indexLess(found[i].index, found[j].index)
		})
		return found
	}
	return nil
}
