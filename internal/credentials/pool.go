// Package credentials implements the rotating API-key / model-fallback pool
// of spec.md §4.1, grounded on the locking discipline of the teacher's
// internal/auth.Manager and internal/auth.RateLimiter: a shared RWMutex lets
// readers of the current (key, model) pair never block each other, while
// rotation and deactivation take the write lock.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"codeintel/internal/logging"
)

// FailureKind classifies a remote-call failure for report_failure.
type FailureKind string

const (
	FailureQuota       FailureKind = "quota"
	FailureServerError FailureKind = "server_error"
)

const maxConsecutiveFailures = 3

type keyState struct {
	value       string
	failCount   int
	deactivated bool
}

// Pair is a (key, model) credential identity snapshot.
type Pair struct {
	Key      string
	Model    string
	KeyIndex int
	ModelIdx int
}

// FileSchema is the on-disk keys.json/keys.toml shape (spec.md §6).
type FileSchema struct {
	Keys      []string `json:"keys" toml:"keys"`
	Models    []string `json:"models" toml:"models"`
	Primary   string   `json:"primary" toml:"primary"`
	Secondary string   `json:"secondary" toml:"secondary"`
	Serper    string   `json:"serper" toml:"serper"`
}

// Pool maintains ordered keys and models with rotation cursors.
type Pool struct {
	mu sync.RWMutex

	path   string
	keys   []*keyState
	models []string

	keyCursor   int
	modelCursor int

	serperKey string
	logger    *logging.Logger
}

// Load reads a credentials file (searched by the caller; see LocateFile)
// and constructs a Pool.
func Load(path string, logger *logging.Logger) (*Pool, error) {
	schema, err := readFile(path)
	if err != nil {
		return nil, err
	}
	p := &Pool{path: path, logger: logger}
	p.applySchema(schema)
	return p, nil
}

// readFile accepts both JSON and TOML key files, distinguished by
// extension (spec.md §6: "we accept both JSON and TOML key files").
func readFile(path string) (*FileSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var schema FileSchema
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &schema); err != nil {
			return nil, err
		}
		return &schema, nil
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

func (p *Pool) applySchema(schema *FileSchema) {
	keys := make([]*keyState, 0, len(schema.Keys))
	for _, k := range schema.Keys {
		keys = append(keys, &keyState{value: k})
	}
	models := schema.Models
	if len(models) == 0 {
		if schema.Primary != "" {
			models = append(models, schema.Primary)
		}
		if schema.Secondary != "" {
			models = append(models, schema.Secondary)
		}
	}

	p.keys = keys
	p.models = models
	p.serperKey = schema.Serper
	p.keyCursor = 0
	p.modelCursor = 0
}

// LocateFile searches cwd and up to two parent directories for fileName
// (spec.md §6: "searched in CWD and up to two parents").
func LocateFile(cwd, fileName string) (string, bool) {
	dir := cwd
	for i := 0; i < 3; i++ {
		candidate := filepath.Join(dir, fileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// SerperKey returns the configured side-channel web-search API key, if any.
func (p *Pool) SerperKey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.serperKey
}

func (p *Pool) activeKeyCount() int {
	n := 0
	for _, k := range p.keys {
		if !k.deactivated {
			n++
		}
	}
	return n
}

// CurrentPair reads the cursors under the shared (read) lock.
func (p *Pool) CurrentPair() (Pair, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.keys) == 0 || len(p.models) == 0 {
		return Pair{}, false
	}
	idx := p.keyCursor % len(p.keys)
	return Pair{
		Key:      p.keys[idx].value,
		Model:    p.models[p.modelCursor%len(p.models)],
		KeyIndex: idx,
		ModelIdx: p.modelCursor % len(p.models),
	}, true
}

// RotateKey advances the key cursor, wrapping modulo the active key count.
func (p *Pool) RotateKey() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateKeyLocked()
}

func (p *Pool) rotateKeyLocked() {
	if len(p.keys) == 0 {
		return
	}
	for i := 0; i < len(p.keys); i++ {
		p.keyCursor = (p.keyCursor + 1) % len(p.keys)
		if !p.keys[p.keyCursor].deactivated {
			return
		}
	}
}

// RotateModel advances the model cursor and resets the key cursor to 0.
func (p *Pool) RotateModel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.models) == 0 {
		return
	}
	p.modelCursor = (p.modelCursor + 1) % len(p.models)
	p.keyCursor = 0
}

// ReportFailure increments the current key's fail counter; after
// maxConsecutiveFailures the key is deactivated and skipped, and the
// cursor is rotated.
func (p *Pool) ReportFailure(kind FailureKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return
	}
	idx := p.keyCursor % len(p.keys)
	k := p.keys[idx]
	k.failCount++
	if k.failCount >= maxConsecutiveFailures {
		k.deactivated = true
		if p.logger != nil {
			p.logger.Warn("credential deactivated after repeated failures", map[string]interface{}{
				"key_index": idx,
				"kind":      string(kind),
			})
		}
	}
	p.rotateKeyLocked()
}

// Refresh rereads keys and models from the configuration file under the
// exclusive (write) lock.
func (p *Pool) Refresh() error {
	schema, err := readFile(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applySchema(schema)
	return nil
}

// ActiveKeyCount returns the number of keys not yet deactivated, recomputed
// live (decided Open Question: recomputed each call, not cached at mission
// start).
func (p *Pool) ActiveKeyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activeKeyCount()
}

// ModelCount returns the number of configured fallback models.
func (p *Pool) ModelCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.models)
}

// BackoffDelay returns the retry backoff for attempt (0-indexed) given the
// current number of active keys: near-zero while unused keys remain (so a
// fresh key is tried immediately), then exponential (1s * 2^n) once the
// cursor has cycled through every active key.
func BackoffDelay(attempt, activeKeys int) time.Duration {
	if activeKeys <= 0 {
		activeKeys = 1
	}
	if attempt < activeKeys {
		return 0
	}
	n := attempt - activeKeys
	return time.Second * time.Duration(1<<uint(n))
}
