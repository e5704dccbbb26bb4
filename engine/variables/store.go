package variables

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/casarerpa/engine/engine/core"
	"github.com/casarerpa/engine/pkg/tplengine"
)

// Renderer renders a placeholder body against arbitrary data. Satisfied by
// *tplengine.Engine; kept as an interface so tests can stub it.
type Renderer interface {
	RenderString(body string, data any) (string, error)
}

// cacheEntry is what the resolution cache stores: the rendered string plus
// the cacheVersion it was rendered under, so a stale hit (one that slipped
// through under a version that has since advanced) is never served.
type cacheEntry struct {
	version uint64
	value   string
}

// resolveCache is the narrow interface the store needs from its memoising
// layer, satisfied by a *ristretto.Cache[string, cacheEntry] adapter.
type resolveCache interface {
	Get(key string) (cacheEntry, bool)
	Set(key string, value cacheEntry)
}

// Store is the hierarchical variable store: a stack of scope frames plus a
// resolution cache for rendered placeholder templates. Every method takes
// the mutex below, so a Store is safe for concurrent use; engine/runtime
// runs parallel branches of one run against the same Store.
type Store struct {
	mu           sync.RWMutex
	frames       []*frame
	renderer     Renderer
	cache        resolveCache
	cacheVersion atomic.Uint64
}

// New builds a Store with a single workflow-level root frame seeded from
// initial (typically the workflow document's declared Variables).
func New(renderer Renderer, cache resolveCache, initial map[string]any) *Store {
	if renderer == nil {
		renderer = tplengine.NewEngine(tplengine.FormatText)
	}
	if cache == nil {
		cache = newNoopCache()
	}
	s := &Store{
		frames:   []*frame{newFrame(FrameWorkflow, initial)},
		renderer: renderer,
		cache:    cache,
	}
	return s
}

// PushScope pushes a new frame of the given kind, seeded with a deep copy of
// seed so mutations inside the new scope never leak back to the parent.
// Pushing changes what any template referencing a seeded name resolves to,
// so the resolution cache version is bumped the same way Set does.
func (s *Store) PushScope(kind FrameKind, seed map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]any, len(seed))
	for k, v := range seed {
		copied[k] = deepCopyValue(v)
	}
	s.frames = append(s.frames, newFrame(kind, copied))
	s.cacheVersion.Add(1)
}

// PopScope removes the topmost frame. Popping the root workflow frame is a
// programming error and panics, since the store always needs at least one
// frame to resolve against.
func (s *Store) PopScope() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) <= 1 {
		panic("variables: cannot pop the root workflow scope")
	}
	s.frames = s.frames[:len(s.frames)-1]
	s.cacheVersion.Add(1)
}

// Depth reports how many frames are currently on the stack.
func (s *Store) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Get looks up name, walking frames from the top of the stack down to the
// root. Returns UndefinedVariable if no frame defines it.
func (s *Store) Get(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].values[name]; ok {
			return v, nil
		}
	}
	return nil, core.NewError(
		fmt.Errorf("undefined variable %q", name), core.ErrUndefinedVariable, map[string]any{"name": name},
	)
}

// Set assigns name in the nearest frame (searching from the top of the
// stack down) that already owns it, falling back to the root workflow
// frame if no frame does: a loop or sub-workflow frame only shadows
// a name it was itself seeded with, so an accumulator declared at workflow
// scope keeps updating in place across iterations instead of being
// silently discarded when its owning loop frame pops. Bumps the cache
// version so every memoised template referencing name is recomputed on
// next resolution.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].values[name]; ok {
			s.frames[i].values[name] = value
			s.cacheVersion.Add(1)
			return
		}
	}
	s.frames[0].values[name] = value
	s.cacheVersion.Add(1)
}

// Snapshot returns a flattened, deep-copied view of every frame merged
// bottom-up (child frames override parent values) -- what a node sees when
// it asks for "all current variables" rather than one name.
func (s *Store) Snapshot() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]any{}
	var err error
	for _, f := range s.frames {
		out, err = mergeInto(out, f.values)
		if err != nil {
			return nil, err
		}
	}
	return deepCopyValue(out).(map[string]any), nil
}

// Resolve renders template against the current snapshot, serving a cached
// render when the cache version hasn't advanced since it was computed.
func (s *Store) Resolve(template string) (string, error) {
	if !tplengine.HasTemplate(template) {
		return template, nil
	}
	version := s.cacheVersion.Load()
	if entry, ok := s.cache.Get(template); ok && entry.version == version {
		return entry.value, nil
	}
	data, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	out, err := s.renderer.RenderString(template, data)
	if err != nil {
		return "", core.NewError(err, core.ErrUndefinedVariable, map[string]any{"template": template})
	}
	s.cache.Set(template, cacheEntry{version: version, value: out})
	return out, nil
}

// barePlaceholderRe matches a template string that is, once surrounding
// whitespace is trimmed, exactly one placeholder and nothing else -- either
// the config-level bare form ({{name}}) or text/template's dot-field form
// ({{ .name }}).
var barePlaceholderRe = regexp.MustCompile(`^\{\{\s*\.?([A-Za-z_][A-Za-z0-9_]*)\s*\}\}$`)

func barePlaceholderName(template string) (string, bool) {
	m := barePlaceholderRe.FindStringSubmatch(strings.TrimSpace(template))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ResolveValue resolves template against the current scope the same way
// Resolve does, except that when template is exactly one placeholder it
// returns the referenced variable's native Go value instead of a
// stringified rendering -- so a `{{items}}` reference to a List
// variable yields the list itself, not its string representation.
func (s *Store) ResolveValue(template string) (any, error) {
	if name, ok := barePlaceholderName(template); ok {
		return s.Get(name)
	}
	return s.Resolve(template)
}

type noopCache struct{}

func newNoopCache() resolveCache { return noopCache{} }

func (noopCache) Get(string) (cacheEntry, bool) { return cacheEntry{}, false }
func (noopCache) Set(string, cacheEntry)        {}
