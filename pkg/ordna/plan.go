package ordna

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/tstromberg/ordna/pkg/geocode"
)

// Planner computes collision-free destinations. It remembers every path
// it hands out, so two same-named sources in one run never share a
// target even before anything lands on disk.
type Planner struct {
	dstRoot  string
	twoLevel bool
	action   Action
	claimed  map[string]bool
}

func NewPlanner(dstRoot string, twoLevel bool, action Action) *Planner {
	return &Planner{
		dstRoot:  dstRoot,
		twoLevel: twoLevel,
		action:   action,
		claimed:  map[string]bool{},
	}
}

// FolderKey names the destination folder for a capture time and
// country, like "2024-10-Japan". The country segment is dropped in
// two-level mode and when the country is absent or Unknown.
func FolderKey(taken time.Time, country string, twoLevel bool) string {
	ym := taken.Format("2006-01")
	if twoLevel || country == "" || country == geocode.Unknown {
		return ym
	}

	c := sanitizeFolderName(country)
	if c == "" {
		return ym
	}

	return ym + "-" + c
}

// sanitizeFolderName keeps letters, digits, spaces, dashes, and
// underscores, dropping everything else.
func sanitizeFolderName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Plan decides where one file lands.
func (p *Planner) Plan(rec *FileRecord, country string) *PlacementDecision {
	folder := FolderKey(rec.Taken, country, p.twoLevel)
	dest := p.uniqueDest(filepath.Join(p.dstRoot, folder), filepath.Base(rec.Path))
	p.claimed[dest] = true

	return &PlacementDecision{
		Source:  rec.Path,
		Dest:    dest,
		Folder:  folder,
		Country: country,
		Taken:   rec.Taken,
		Coord:   rec.Coord,
		Action:  p.action,
	}
}

// uniqueDest returns the first destination not on disk and not already
// claimed this run, probing name.ext, name_1.ext, name_2.ext, and so
// on.
func (p *Planner) uniqueDest(dir string, name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	cand := filepath.Join(dir, name)
	for i := 1; p.occupied(cand); i++ {
		cand = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
	return cand
}

func (p *Planner) occupied(path string) bool {
	if p.claimed[path] {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}
