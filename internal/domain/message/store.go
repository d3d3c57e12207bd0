package message

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"smartmsg/internal/common"
)

// fileKey addresses one template file. Block keys are resolved against the
// parsed file, so caching per file also caches every block in it.
type fileKey struct {
	Module string
	Role   string
	Lang   string
	File   string
}

// loadCall tracks an in-flight file load so concurrent resolvers of the
// same key wait for one read instead of each hitting the disk.
type loadCall struct {
	done   chan struct{}
	blocks map[string]*TemplateBlock
	err    error
}

// Store loads and caches template files from a directory tree laid out as
// <root>/<module>/<role>/<lang>/<file>.json. Only the parsed template shell
// is cached — substituted text never is, so personalized content cannot
// leak between callers. A populated cache entry is immutable.
type Store struct {
	root string

	mu       sync.Mutex
	cache    map[fileKey]map[string]*TemplateBlock
	inflight map[fileKey]*loadCall

	// Swapped in tests to count backing reads.
	readFile func(string) ([]byte, error)
}

// NewStore creates a template store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{
		root:     root,
		cache:    make(map[fileKey]map[string]*TemplateBlock),
		inflight: make(map[fileKey]*loadCall),
		readFile: os.ReadFile,
	}
}

// Resolve returns the block addressed by ref, loading and caching its file
// on first use. The file is read and parsed at most once per key even under
// concurrent access; later calls are served from the cache without touching
// the disk.
func (s *Store) Resolve(ctx context.Context, ref BlockRef) (*TemplateBlock, error) {
	key := fileKey{Module: ref.Module, Role: ref.Role, Lang: ref.Lang, File: ref.File}

	blocks, err := s.loadFile(ctx, key)
	if err != nil {
		return nil, err
	}

	block, ok := blocks[ref.Key]
	if !ok {
		return nil, &common.TemplateNotFoundError{Path: s.filePath(key), BlockKey: ref.Key}
	}
	return block, nil
}

// MediaPath resolves a media file reference to an absolute path under the
// store root: <root>/<module>/<namespace>/<role>/<lang>/media/<file>.
func (s *Store) MediaPath(module, namespace, role, lang, file string) string {
	return filepath.Join(s.root, module, namespace, role, lang, "media", file)
}

func (s *Store) filePath(key fileKey) string {
	return filepath.Join(s.root, key.Module, key.Role, key.Lang, key.File+".json")
}

// loadFile serves the parsed file from cache, joins an in-flight load, or
// becomes the loader itself. Failed loads are not cached, so a later call
// may retry; the first successful load wins and is never replaced.
func (s *Store) loadFile(ctx context.Context, key fileKey) (map[string]*TemplateBlock, error) {
	s.mu.Lock()
	if blocks, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return blocks, nil
	}
	if call, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.blocks, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	call.blocks, call.err = s.parseFile(s.filePath(key))

	s.mu.Lock()
	if call.err == nil {
		s.cache[key] = call.blocks
	}
	delete(s.inflight, key)
	s.mu.Unlock()
	close(call.done)

	return call.blocks, call.err
}

// parseFile reads one template file and validates every block in it.
// Unknown control variants are rejected here, at construction, so render
// time never sees a malformed block.
func (s *Store) parseFile(path string) (map[string]*TemplateBlock, error) {
	data, err := s.readFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &common.TemplateNotFoundError{Path: path}
		}
		return nil, &common.TemplateParseError{Path: path, Reason: err.Error()}
	}

	var raw map[string]*TemplateBlock
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &common.TemplateParseError{Path: path, Reason: err.Error()}
	}

	for key, block := range raw {
		if block == nil {
			return nil, &common.TemplateParseError{Path: path, Reason: "block '" + key + "' is null"}
		}
		if block.Text == "" && block.Media == "" {
			return nil, &common.TemplateParseError{Path: path, Reason: "block '" + key + "' has neither text nor media"}
		}
		validate := validateInlineSpec
		if rowsAreReply(block.Buttons) {
			validate = validateReplySpec
		}
		for _, row := range block.Buttons {
			for _, spec := range row {
				if err := validate(spec); err != nil {
					var unsupported *common.UnsupportedControlTypeError
					if errors.As(err, &unsupported) {
						return nil, err
					}
					return nil, &common.TemplateParseError{Path: path, Reason: "block '" + key + "': " + err.Error()}
				}
			}
		}
	}

	return raw, nil
}
