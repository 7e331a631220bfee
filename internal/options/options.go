// Package options holds the persisted search configuration.
package options

import (
	"fmt"
	"slices"
)

const DefaultHistoryLimit = 20

type SortKey string

const (
	SortNone      SortKey = "none"
	SortPath      SortKey = "path"
	SortName      SortKey = "name"
	SortExtension SortKey = "extension"
)

func (k SortKey) MarshalText() (text []byte, err error) {
	return []byte(k), nil
}

func (k *SortKey) UnmarshalText(text []byte) error {
	*k = SortKey(text)

	return checkEnum(*k, SortNone, SortPath, SortName, SortExtension)
}

// FileTypes selects which entry kinds a name search reports.
type FileTypes string

const (
	FileTypesFiles       FileTypes = "files"
	FileTypesDirectories FileTypes = "directories"
	FileTypesAll         FileTypes = "all"
)

func (t FileTypes) MarshalText() (text []byte, err error) {
	return []byte(t), nil
}

func (t *FileTypes) UnmarshalText(text []byte) error {
	*t = FileTypes(text)

	return checkEnum(*t, FileTypesFiles, FileTypesDirectories, FileTypesAll)
}

func checkEnum[T comparable](v T, validValues ...T) error {
	if !slices.Contains(validValues, v) {
		return fmt.Errorf("valid values: %v", validValues)
	}
	return nil
}

type NameOptions struct {
	CaseSensitive  bool      `toml:"case_sensitive"`
	FileTypes      FileTypes `toml:"file_types"`
	SameFilesystem bool      `toml:"same_filesystem"`
	FollowLinks    bool      `toml:"follow_links"`
	HideHidden     bool      `toml:"hide_hidden"`
	RespectIgnore  bool      `toml:"respect_ignore"`
}

type ContentOptions struct {
	CaseSensitive bool `toml:"case_sensitive"`
	// Literal matches the pattern as plain text instead of a regular expression.
	Literal bool `toml:"literal"`
	// Extended also searches the text of documents such as PDF and Office files.
	Extended bool `toml:"extended"`
}

type Options struct {
	Sort    SortKey `toml:"sort"`
	LastDir string  `toml:"last_dir"`
	// Histories are most recent first.
	NameHistory    []string `toml:"name_history"`
	ContentHistory []string `toml:"content_history"`
	HistoryLimit   int      `toml:"history_limit"`
	// Threads bounds walker parallelism; zero means one per CPU.
	Threads int `toml:"threads"`

	Name    NameOptions    `toml:"name"`
	Content ContentOptions `toml:"content"`
}

func Default() Options {
	return Options{
		Sort:         SortNone,
		LastDir:      ".",
		HistoryLimit: DefaultHistoryLimit,
		Name: NameOptions{
			FileTypes:     FileTypesAll,
			HideHidden:    true,
			RespectIgnore: true,
		},
	}
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	if err := checkEnum(o.Sort, SortNone, SortPath, SortName, SortExtension); err != nil {
		return fmt.Errorf("invalid sort %q: %w", o.Sort, err)
	}
	if err := checkEnum(o.Name.FileTypes, FileTypesFiles, FileTypesDirectories, FileTypesAll); err != nil {
		return fmt.Errorf("invalid file types %q: %w", o.Name.FileTypes, err)
	}
	if o.HistoryLimit < 0 {
		return fmt.Errorf("history limit can't be negative: %d", o.HistoryLimit)
	}
	if o.Threads < 0 {
		return fmt.Errorf("threads can't be negative: %d", o.Threads)
	}
	return nil
}

// Clone returns a copy that shares no slices with o.
func (o Options) Clone() Options {
	o.NameHistory = slices.Clone(o.NameHistory)
	o.ContentHistory = slices.Clone(o.ContentHistory)
	return o
}

func (o Options) historyLimit() int {
	if o.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return o.HistoryLimit
}

// Remember records the directory and the non-empty patterns of a search.
func (o *Options) Remember(dir, namePattern, contentPattern string) {
	if dir != "" {
		o.LastDir = dir
	}
	limit := o.historyLimit()
	if namePattern != "" {
		o.NameHistory = PushHistory(o.NameHistory, namePattern, limit)
	}
	if contentPattern != "" {
		o.ContentHistory = PushHistory(o.ContentHistory, contentPattern, limit)
	}
}

// Trimmed returns a clone whose histories fit the history limit.
func (o Options) Trimmed() Options {
	o = o.Clone()
	limit := o.historyLimit()
	if len(o.NameHistory) > limit {
		o.NameHistory = o.NameHistory[:limit]
	}
	if len(o.ContentHistory) > limit {
		o.ContentHistory = o.ContentHistory[:limit]
	}
	return o
}

// PushHistory moves value to the front of history, dropping duplicates and
// anything past limit. It always returns a new slice.
func PushHistory(history []string, value string, limit int) []string {
	out := make([]string, 0, min(len(history)+1, max(limit, 1)))
	out = append(out, value)
	for _, v := range history {
		if len(out) >= limit {
			break
		}
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
