// Package library loads component libraries: folder trees of component
// references published as a single YAML document.
package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/fetch"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// DefaultConcurrency bounds parallel hydrations during Load.
const DefaultConcurrency = 8

// Library is a published set of components.
type Library struct {
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Folders     []Folder          `yaml:"folders" json:"folders"`
}

// Folder groups components and nested folders.
type Folder struct {
	Name       string                             `yaml:"name" json:"name"`
	Components []componentspec.ComponentReference `yaml:"components,omitempty" json:"components,omitempty"`
	Folders    []Folder                           `yaml:"folders,omitempty" json:"folders,omitempty"`
}

// Parse decodes a library document.
func Parse(text string) (*Library, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &componentspec.ParseError{Msg: "empty library text"}
	}
	var lib Library
	if err := yaml.Unmarshal([]byte(text), &lib); err != nil {
		return nil, &componentspec.ParseError{Msg: "invalid library", Err: err}
	}
	return &lib, nil
}

// entry is one component reference with the folder path it was found under.
type entry struct {
	folder string
	ref    componentspec.ComponentReference
}

// walk lists every component reference depth first with its folder path,
// segments joined by "/".
func (l *Library) walk() []entry {
	var out []entry
	var visit func(prefix string, folders []Folder)
	visit = func(prefix string, folders []Folder) {
		for _, f := range folders {
			path := f.Name
			if prefix != "" {
				path = prefix + "/" + f.Name
			}
			for _, ref := range f.Components {
				out = append(out, entry{folder: path, ref: ref})
			}
			visit(path, f.Folders)
		}
	}
	visit("", l.Folders)
	return out
}

// Hydrator resolves one reference; *hydrate.Hydrator satisfies it.
type Hydrator interface {
	Hydrate(ctx context.Context, ref componentspec.ComponentReference) *componentref.Hydrated
}

// Entry is the outcome for one component of a library.
type Entry struct {
	Folder   string `json:"folder"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Cached   bool   `json:"cached"`
	Resolved bool   `json:"resolved"`
}

// Report summarises one Load.
type Report struct {
	URL        string  `json:"url"`
	SnapshotID string  `json:"snapshotId"`
	Entries    []Entry `json:"entries"`
	Resolved   int     `json:"resolved"`
	Unresolved int     `json:"unresolved"`
}

// Loader fetches libraries, snapshots them and hydrates their components.
type Loader struct {
	store       store.ComponentStore
	fetcher     fetch.Fetcher
	hydrator    Hydrator
	concurrency int
	now         func() time.Time
}

// NewLoader creates a Loader. A non-positive concurrency means DefaultConcurrency.
func NewLoader(s store.ComponentStore, f fetch.Fetcher, h Hydrator, concurrency int) *Loader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Loader{
		store:       s,
		fetcher:     f,
		hydrator:    h,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// SetClock overrides the clock used for snapshot ids.
func (l *Loader) SetClock(clock func() time.Time) {
	l.now = clock
}

// Load fetches the library at url, stores a snapshot of its text and hydrates
// every component it lists. Components that fail to resolve are reported, not
// returned as errors; only fetch, parse and snapshot failures are.
func (l *Loader) Load(ctx context.Context, url string) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	text, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch library: %w", err)
	}
	lib, err := Parse(text)
	if err != nil {
		return nil, err
	}

	snapshotID := store.LibraryID(l.now())
	if err := l.store.Save(ctx, store.Record{ID: snapshotID, URL: url, Data: text}); err != nil {
		return nil, fmt.Errorf("failed to save library snapshot: %w", err)
	}

	entries := lib.walk()
	report := &Report{
		URL:        url,
		SnapshotID: snapshotID,
		Entries:    make([]Entry, len(entries)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			out := Entry{Folder: e.folder, Name: e.ref.Name, URL: e.ref.URL}
			if e.ref.URL != "" {
				cached, err := l.store.ExistsByURL(gctx, e.ref.URL)
				if err != nil {
					logger.Warn("library_cache_check_failed", "url", e.ref.URL, "error", err.Error())
				}
				out.Cached = cached
			}
			if h := l.hydrator.Hydrate(gctx, e.ref); h != nil {
				out.Resolved = true
				out.Name = h.Name
				out.Digest = h.Digest
				out.URL = h.URL
			}
			report.Entries[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, e := range report.Entries {
		if e.Resolved {
			report.Resolved++
		} else {
			report.Unresolved++
		}
	}
	logger.Info("library_loaded",
		"url", url,
		"snapshot_id", snapshotID,
		"resolved", report.Resolved,
		"unresolved", report.Unresolved,
	)
	return report, nil
}
