package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// PhraseList holds known spurious recognizer phrases ("thank you for
// watching", broadcast sign-offs, subtitle credits) loaded from YAML files.
// Matching is done on normalized text.
type PhraseList struct {
	dir string

	mu      sync.RWMutex
	phrases map[string]struct{}
}

// phraseFile is the on-disk format: one YAML document per file.
type phraseFile struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

// NewPhraseList creates a phrase list for the given directory.
func NewPhraseList(dir string) *PhraseList {
	return &PhraseList{
		dir:     dir,
		phrases: make(map[string]struct{}),
	}
}

// LoadAll loads all .yaml and .yml files from the configured directory,
// replacing the current list.
func (p *PhraseList) LoadAll() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("read phrase dir %q: %w", p.dir, err)
	}

	loaded := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(p.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("load %q: %w", path, err)
		}

		var pf phraseFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return fmt.Errorf("parse %q: %w", path, err)
		}

		for _, phrase := range pf.Phrases {
			if norm := Normalize(phrase); norm != "" {
				loaded[norm] = struct{}{}
			}
		}
	}

	p.mu.Lock()
	p.phrases = loaded
	p.mu.Unlock()
	return nil
}

// Contains reports whether the normalized text is a known spurious phrase.
func (p *PhraseList) Contains(text string) bool {
	norm := Normalize(text)
	if norm == "" {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.phrases[norm]
	return ok
}

// Len returns the number of loaded phrases.
func (p *PhraseList) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.phrases)
}

// WatchAndReload watches the phrase directory and reloads on changes.
// Blocks until the done channel is closed.
func (p *PhraseList) WatchAndReload(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", p.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				ext := filepath.Ext(event.Name)
				if ext == ".yaml" || ext == ".yml" {
					p.LoadAll()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
