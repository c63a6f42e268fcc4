// Package evidence reads scraped text snippets from a JSON-lines file.
package evidence

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/okian/sickbay/internal/domain/dedupe"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

const maxLineBytes = 1 << 20

// Stats counts what happened to each line of one read.
type Stats struct {
	Lines      int `json:"lines"`
	Accepted   int `json:"accepted"`
	Malformed  int `json:"malformed"`
	Duplicates int `json:"duplicates"`
}

// Source produces evidence snippets for a set of players. An empty set means every player.
type Source interface {
	Fetch(ctx context.Context, players []string) ([]model.EvidenceItem, Stats, error)
	// Release hands items back so a later Fetch returns them again.
	Release(ctx context.Context, items ...model.EvidenceItem)
}

// FileSource reads one EvidenceItem per line. Markup is stripped and entities
// unescaped; a snippet already seen by the deduper is dropped.
type FileSource struct {
	path      string
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	deduper   dedupe.Deduper
	logger    logger.Logger
}

// NewFileSource creates a source reading path. An empty path yields no evidence.
func NewFileSource(path string, opts ...Option) *FileSource {
	s := &FileSource{
		path:      path,
		validate:  validator.New(),
		sanitizer: bluemonday.StrictPolicy(),
		deduper:   dedupe.NewInMemoryDeduper(),
		logger:    logger.Get().Named("evidence"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch reads the configured file.
func (s *FileSource) Fetch(ctx context.Context, players []string) ([]model.EvidenceItem, Stats, error) {
	if s.path == "" {
		return nil, Stats{}, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open evidence file: %w", err)
	}
	defer f.Close()
	return s.Read(ctx, f, players)
}

// Read parses lines from r.
func (s *FileSource) Read(ctx context.Context, r io.Reader, players []string) ([]model.EvidenceItem, Stats, error) {
	wanted := make(map[string]struct{}, len(players))
	for _, p := range players {
		wanted[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}

	var (
		items []model.EvidenceItem
		stats Stats
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return items, stats, err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		item, err := s.ParseLine(line)
		if err != nil {
			stats.Malformed++
			metrics.RecordEvidence("malformed")
			s.logger.Debug(ctx, "skipping evidence line", logger.Int("line", stats.Lines), logger.Error(err))
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToLower(item.PlayerName)]; !ok {
				continue
			}
		}
		if s.deduper.SeenAndRecord(ctx, fingerprint(item)) {
			stats.Duplicates++
			metrics.RecordEvidence("duplicate")
			continue
		}
		stats.Accepted++
		metrics.RecordEvidence("accepted")
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return items, stats, fmt.Errorf("read evidence: %w", err)
	}

	s.logger.Info(ctx, "evidence read",
		logger.Int("lines", stats.Lines),
		logger.Int("accepted", stats.Accepted),
		logger.Int("malformed", stats.Malformed),
		logger.Int("duplicates", stats.Duplicates),
	)
	return items, stats, nil
}

// Release forgets the fingerprints of items that were read but not acted on.
func (s *FileSource) Release(ctx context.Context, items ...model.EvidenceItem) {
	for _, item := range items {
		s.deduper.Unrecord(ctx, fingerprint(item))
	}
	if len(items) > 0 {
		s.logger.Debug(ctx, "evidence released", logger.Int("items", len(items)))
	}
}

func fingerprint(item model.EvidenceItem) uint64 {
	return dedupe.Fingerprint(item.PlayerName, item.URL, item.RawText)
}

// ParseLine decodes, validates and cleans one line.
func (s *FileSource) ParseLine(line []byte) (model.EvidenceItem, error) {
	var item model.EvidenceItem
	if err := json.Unmarshal(line, &item); err != nil {
		return item, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	item.PlayerName = strings.TrimSpace(item.PlayerName)
	if err := s.validate.Struct(item); err != nil {
		return item, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	item.RawText = s.clean(item.RawText)
	if item.RawText == "" {
		return item, fmt.Errorf("%w: empty text after sanitizing", ErrMalformed)
	}
	item.SourceType = model.ParseSourceType(string(item.SourceType))
	item.SourceLabel = strings.TrimSpace(item.SourceLabel)
	if item.SourceLabel == "" {
		item.SourceLabel = hostOf(item.URL)
	}
	return item, nil
}

func (s *FileSource) clean(text string) string {
	stripped := html.UnescapeString(s.sanitizer.Sanitize(text))
	return strings.Join(strings.Fields(stripped), " ")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
