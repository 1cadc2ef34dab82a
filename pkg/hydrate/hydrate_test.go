package hydrate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/digest"
	"github.com/rmax-ai/pipeforge/pkg/fetch"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

const echoText = `name: Echo
inputs:
- name: message
implementation:
  container:
    image: alpine
    command: [echo]
`

const anonymousText = `implementation:
  container:
    image: busybox
`

type countingFetcher struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*store.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*store.Record)
	return rec, args.Error(1)
}

func (m *MockStore) GetByURL(ctx context.Context, url string) (*store.Record, error) {
	args := m.Called(ctx, url)
	rec, _ := args.Get(0).(*store.Record)
	return rec, args.Error(1)
}

func (m *MockStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	args := m.Called(ctx, url)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, rec store.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, limit int) ([]store.Record, error) {
	args := m.Called(ctx, limit)
	recs, _ := args.Get(0).([]store.Record)
	return recs, args.Error(1)
}

func mustDigest(t *testing.T, text string) string {
	t.Helper()
	d, err := digest.Compute(text)
	require.NoError(t, err)
	return d
}

func flush(t *testing.T, h *Hydrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Flush(ctx))
}

func TestHydrate_TextOnly(t *testing.T) {
	s := store.NewMemoryStore()
	h := New(s, nil)

	got := h.Hydrate(context.Background(), componentspec.ComponentReference{Text: echoText})
	require.NotNil(t, got)
	assert.Equal(t, mustDigest(t, echoText), got.Digest)
	assert.Equal(t, "Echo", got.Name)
	assert.Equal(t, echoText, got.Text)
	require.NotNil(t, got.Spec)
	assert.Equal(t, []string{"message"}, got.Spec.InputNames())

	flush(t, h)
	rec, err := s.GetByID(context.Background(), store.ComponentID(got.Digest))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, echoText, rec.Data)
}

func TestHydrate_NameResolution(t *testing.T) {
	h := New(store.NewMemoryStore(), nil)
	ctx := context.Background()

	explicit := h.Hydrate(ctx, componentspec.ComponentReference{Name: "My Echo", Text: echoText})
	require.NotNil(t, explicit)
	assert.Equal(t, "My Echo", explicit.Name)

	anonymous := h.Hydrate(ctx, componentspec.ComponentReference{Text: anonymousText})
	require.NotNil(t, anonymous)
	assert.Equal(t, "component-"+mustDigest(t, anonymousText)[:8], anonymous.Name)
	flush(t, h)
}

func TestHydrate_Idempotent(t *testing.T) {
	h := New(store.NewMemoryStore(), nil)
	ctx := context.Background()

	first := h.Hydrate(ctx, componentspec.ComponentReference{Text: echoText, URL: "https://example.com/echo.yaml"})
	require.NotNil(t, first)

	second := h.Hydrate(ctx, first.Reference())
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	flush(t, h)
}

func TestHydrate_StaleDigestIsRederived(t *testing.T) {
	h := New(store.NewMemoryStore(), nil)
	spec, err := componentspec.Parse(echoText)
	require.NoError(t, err)

	stale := componentspec.ComponentReference{
		Digest: mustDigest(t, "something else"),
		Name:   "Echo",
		Text:   echoText,
		Spec:   spec,
	}
	got := h.Hydrate(context.Background(), stale)
	require.NotNil(t, got)
	assert.Equal(t, mustDigest(t, echoText), got.Digest)
	flush(t, h)
}

func TestHydrate_SpecOnly(t *testing.T) {
	h := New(store.NewMemoryStore(), nil)
	spec, err := componentspec.Parse(echoText)
	require.NoError(t, err)

	got := h.Hydrate(context.Background(), componentspec.ComponentReference{Spec: spec})
	require.NotNil(t, got)

	text, err := componentspec.Serialize(spec)
	require.NoError(t, err)
	assert.Equal(t, text, got.Text)
	assert.Equal(t, mustDigest(t, text), got.Digest)
	assert.Equal(t, "Echo", got.Name)
	flush(t, h)
}

func TestHydrate_SpecOnlyWithoutImplementation(t *testing.T) {
	s := store.NewMemoryStore()
	h := New(s, nil)

	got := h.Hydrate(context.Background(), componentspec.ComponentReference{Spec: &componentspec.ComponentSpec{Name: "x"}})
	assert.Nil(t, got)

	flush(t, h)
	recs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHydrate_Invalid(t *testing.T) {
	h := New(store.NewMemoryStore(), nil)
	assert.Nil(t, h.Hydrate(context.Background(), componentspec.ComponentReference{Name: "only a name"}))
}

func TestHydrate_DiscoverableFromStore(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	d := mustDigest(t, echoText)
	require.NoError(t, s.Save(ctx, store.Record{ID: store.ComponentID(d), URL: "https://example.com/echo.yaml", Data: echoText}))

	h := New(s, nil)
	got := h.Hydrate(ctx, componentspec.ComponentReference{Digest: d})
	require.NotNil(t, got)
	assert.Equal(t, d, got.Digest)
	assert.Equal(t, "https://example.com/echo.yaml", got.URL)
	flush(t, h)
}

func TestHydrate_DiscoverableMissIsNull(t *testing.T) {
	f := &countingFetcher{text: echoText}
	h := New(store.NewMemoryStore(), f)

	got := h.Hydrate(context.Background(), componentspec.ComponentReference{Digest: mustDigest(t, echoText)})
	assert.Nil(t, got)
	assert.Zero(t, f.calls.Load())
}

func TestHydrate_DigestMissFallsBackToFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		fmt.Fprint(w, echoText)
	}))
	defer ts.Close()

	s := store.NewMemoryStore()
	h := New(s, fetch.NewHTTPFetcherWithClient(ts.Client()))
	url := ts.URL + "/echo.yaml"

	got := h.Hydrate(context.Background(), componentspec.ComponentReference{
		Digest: mustDigest(t, "not cached"),
		URL:    url,
	})
	require.NotNil(t, got)
	assert.Equal(t, mustDigest(t, echoText), got.Digest)
	assert.Equal(t, url, got.URL)
	assert.Equal(t, "Echo", got.Name)

	flush(t, h)
	rec, err := s.GetByURL(context.Background(), url)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.ComponentID(got.Digest), rec.ID)
}

func TestHydrate_LoadableUsesCachedURL(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	url := "https://example.com/echo.yaml"
	require.NoError(t, s.Save(ctx, store.Record{ID: store.ComponentID(mustDigest(t, echoText)), URL: url, Data: echoText}))

	f := &countingFetcher{err: errors.New("should not be called")}
	h := New(s, f)

	got := h.Hydrate(ctx, componentspec.ComponentReference{URL: url})
	require.NotNil(t, got)
	assert.Equal(t, "Echo", got.Name)
	assert.Zero(t, f.calls.Load())
	flush(t, h)
}

func TestHydrate_ParseFailureCachesRawText(t *testing.T) {
	const broken = "name: [unterminated"
	s := store.NewMemoryStore()
	f := &countingFetcher{text: broken}
	h := New(s, f)
	url := "https://example.com/broken.yaml"

	assert.Nil(t, h.Hydrate(context.Background(), componentspec.ComponentReference{URL: url}))

	flush(t, h)
	rec, err := s.GetByID(context.Background(), store.ComponentID(mustDigest(t, broken)))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, broken, rec.Data)
	assert.Empty(t, rec.URL)

	exists, err := s.ExistsByURL(context.Background(), url)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHydrate_BadResponseDoesNotPoisonURL(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>down for maintenance: [</body></html>"))
			return
		}
		w.Write([]byte(echoText))
	}))
	defer ts.Close()

	s := store.NewMemoryStore()
	h := New(s, fetch.NewHTTPFetcherWithClient(ts.Client()))
	ref := componentspec.ComponentReference{URL: ts.URL + "/echo.yaml"}

	assert.Nil(t, h.Hydrate(context.Background(), ref))
	flush(t, h)

	got := h.Hydrate(context.Background(), ref)
	require.NotNil(t, got)
	assert.Equal(t, "Echo", got.Name)
	assert.Equal(t, int32(2), calls.Load())
	flush(t, h)
}

func TestHydrate_UnparsableURLRecordIsRefetched(t *testing.T) {
	const broken = "name: [unterminated"
	s := store.NewMemoryStore()
	ctx := context.Background()
	url := "https://example.com/echo.yaml"
	require.NoError(t, s.Save(ctx, store.Record{ID: store.ComponentID(mustDigest(t, broken)), URL: url, Data: broken}))

	f := &countingFetcher{text: echoText}
	h := New(s, f)

	got := h.Hydrate(ctx, componentspec.ComponentReference{URL: url})
	require.NotNil(t, got)
	assert.Equal(t, "Echo", got.Name)
	assert.Equal(t, int32(1), f.calls.Load())
	flush(t, h)
}

func TestHydrate_NetworkFailureWritesNothing(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	s := store.NewMemoryStore()
	h := New(s, fetch.NewHTTPFetcherWithClient(ts.Client()))

	assert.Nil(t, h.Hydrate(context.Background(), componentspec.ComponentReference{URL: ts.URL + "/missing.yaml"}))

	flush(t, h)
	recs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHydrate_NoFetcher(t *testing.T) {
	h := New(store.NewMemoryStore(), nil)
	assert.Nil(t, h.Hydrate(context.Background(), componentspec.ComponentReference{URL: "https://example.com/x.yaml"}))
}

func TestHydrate_StoreFailuresAreIgnored(t *testing.T) {
	m := new(MockStore)
	url := "https://example.com/echo.yaml"
	m.On("GetByURL", mock.Anything, url).Return(nil, errors.New("connection refused"))
	m.On("Save", mock.Anything, mock.MatchedBy(func(rec store.Record) bool {
		return rec.URL == url && rec.Data == echoText
	})).Return(errors.New("disk full"))

	h := New(m, &countingFetcher{text: echoText})
	got := h.Hydrate(context.Background(), componentspec.ComponentReference{URL: url})
	require.NotNil(t, got)
	assert.Equal(t, "Echo", got.Name)

	flush(t, h)
	m.AssertExpectations(t)
}

func TestHydrate_ConcurrentSameContent(t *testing.T) {
	s := store.NewMemoryStore()
	h := New(s, nil)

	var wg sync.WaitGroup
	results := make([]*componentref.Hydrated, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.Hydrate(context.Background(), componentspec.ComponentReference{Text: echoText})
		}(i)
	}
	wg.Wait()
	flush(t, h)

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].Digest, r.Digest)
	}
	recs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestTransition(t *testing.T) {
	spec, err := componentspec.Parse(echoText)
	require.NoError(t, err)
	d := mustDigest(t, echoText)

	s := store.NewMemoryStore()
	h := New(s, &countingFetcher{text: echoText})
	ctx := context.Background()

	tests := []struct {
		name      string
		in        componentref.Classified
		wantState State
		wantShape componentref.Shape
	}{
		{"invalid", componentref.Invalid{}, StateNull, 0},
		{"hydrated", componentref.Hydrated{Digest: d, Name: "Echo", Text: echoText, Spec: spec}, StateHydrated, 0},
		{"hydrated stale", componentref.Hydrated{Digest: "abc", Name: "Echo", Text: echoText, Spec: spec}, StateEnriched, componentref.ShapeContentful},
		{"contentful", componentref.Contentful{Text: echoText, Spec: spec}, StateHydrated, 0},
		{"text only", componentref.TextOnly{Text: echoText}, StateEnriched, componentref.ShapeContentful},
		{"spec only", componentref.SpecOnly{Spec: spec}, StateEnriched, componentref.ShapeContentful},
		{"discoverable miss", componentref.Discoverable{Digest: d}, StateNull, 0},
		{"locatable miss", componentref.Locatable{Digest: d, URL: "u"}, StateUnresolved, componentref.ShapeLoadable},
		{"loadable miss", componentref.Loadable{URL: "u"}, StateUnresolved, componentref.ShapeNotMaterialized},
		{"not materialized", componentref.NotMaterialized{URL: "u"}, StateUnresolved, componentref.ShapeTextOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := h.Transition(ctx, tt.in)
			assert.Equal(t, tt.wantState, step.State)
			if tt.wantState.Terminal() {
				assert.Nil(t, step.Next)
				if tt.wantState == StateNull {
					assert.Error(t, step.Err)
				} else {
					require.NotNil(t, step.Result)
					assert.Equal(t, d, step.Result.Digest)
				}
				return
			}
			require.NotNil(t, step.Next)
			assert.Equal(t, tt.wantShape, step.Next.Shape())
		})
	}
}

func TestTransition_Errors(t *testing.T) {
	h := New(store.NewMemoryStore(), &countingFetcher{err: &fetch.NetworkError{URL: "u", StatusCode: 500}})
	ctx := context.Background()

	step := h.Transition(ctx, componentref.Invalid{})
	assert.ErrorIs(t, step.Err, ErrInvalidReference)

	step = h.Transition(ctx, componentref.Discoverable{Digest: "abc"})
	assert.ErrorIs(t, step.Err, ErrNotCached)

	step = h.Transition(ctx, componentref.TextOnly{Text: "[1, 2"})
	assert.ErrorIs(t, step.Err, componentspec.ErrParse)
	require.NotNil(t, step.Cache)

	step = h.Transition(ctx, componentref.NotMaterialized{URL: "u"})
	assert.ErrorIs(t, step.Err, fetch.ErrNetwork)
	assert.Nil(t, step.Cache)
}

func TestFlush_RespectsContext(t *testing.T) {
	h := New(store.NewMemoryStore(), nil)
	h.writes.Add(1)
	defer h.writes.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Flush(ctx), context.Canceled)
}
