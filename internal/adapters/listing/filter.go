package listing

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"xdownloader/internal/domain"
)

// HiddenFilter drops listed tweets and creators by account or keyword.
// It is loaded from YAML and reloaded when the file changes.
type HiddenFilter struct {
	mu          sync.RWMutex
	accounts    map[string]bool
	keywords    []string
	lastModTime time.Time
	filePath    string
}

// rawHidden represents the YAML structure.
type rawHidden struct {
	Accounts []string `yaml:"accounts"`
	Keywords []string `yaml:"keywords"`
}

// NewHiddenFilter builds a filter from in-memory lists.
func NewHiddenFilter(accounts, keywords []string) *HiddenFilter {
	f := &HiddenFilter{}
	f.set(rawHidden{Accounts: accounts, Keywords: keywords})
	return f
}

// LoadHiddenFilter loads the filter from a YAML file. An empty path yields a
// filter that hides nothing.
func LoadHiddenFilter(filePath string) (*HiddenFilter, error) {
	f := &HiddenFilter{filePath: filePath}
	if filePath == "" {
		f.set(rawHidden{})
		return f, nil
	}
	if _, err := f.ReloadIfChanged(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReloadIfChanged re-reads the file when its modification time moved.
// It reports whether a reload happened.
func (f *HiddenFilter) ReloadIfChanged() (bool, error) {
	if f.filePath == "" {
		return false, nil
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		return false, err
	}

	f.mu.RLock()
	unchanged := !info.ModTime().After(f.lastModTime)
	f.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return false, err
	}
	var raw rawHidden
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, err
	}

	f.set(raw)
	f.mu.Lock()
	f.lastModTime = info.ModTime()
	f.mu.Unlock()
	return true, nil
}

func (f *HiddenFilter) set(raw rawHidden) {
	accounts := make(map[string]bool, len(raw.Accounts))
	for _, a := range raw.Accounts {
		a = normalizeAccount(a)
		if a != "" {
			accounts[a] = true
		}
	}
	keywords := make([]string, 0, len(raw.Keywords))
	for _, k := range raw.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = accounts
	f.keywords = keywords
}

func normalizeAccount(a string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), "@"))
}

// HidesAccount reports whether screenName is hidden (case-insensitive, "@" optional).
func (f *HiddenFilter) HidesAccount(screenName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.accounts[normalizeAccount(screenName)]
}

// HidesText reports whether text contains a hidden keyword.
func (f *HiddenFilter) HidesText(text string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.keywords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Apply returns l without hidden items, truncated to limit.
func (f *HiddenFilter) Apply(l domain.Listing, limit int) domain.Listing {
	out := domain.Listing{Kind: l.Kind}
	for _, t := range l.Tweets {
		if f.HidesAccount(t.ScreenName) || f.HidesText(t.Text) {
			continue
		}
		if limit > 0 && len(out.Tweets) == limit {
			break
		}
		out.Tweets = append(out.Tweets, t)
	}
	for _, c := range l.Creators {
		if f.HidesAccount(c.ScreenName) {
			continue
		}
		if limit > 0 && len(out.Creators) == limit {
			break
		}
		out.Creators = append(out.Creators, c)
	}
	return out
}
