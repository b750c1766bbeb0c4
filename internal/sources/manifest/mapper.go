package manifest

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/noor/internal/domain"
)

// Mapper converts a manifest into domain surahs.
type Mapper struct {
	baseDir string
	now     func() time.Time
}

// NewMapper creates a mapper. baseDir is where relative audio paths
// resolve when the manifest has no audioBase.
func NewMapper(baseDir string) *Mapper {
	return &Mapper{baseDir: baseDir, now: time.Now}
}

// MapSurahs converts every valid surah of m. Invalid surahs are skipped
// and described in problems; it fails only when nothing is usable.
func (mp *Mapper) MapSurahs(m Manifest) (surahs []*domain.Surah, problems []string, err error) {
	now := mp.now()
	seen := make(map[int]bool, len(m.Surahs))

	for i, entry := range m.Surahs {
		if !domain.ValidSurah(entry.Number) {
			problems = append(problems, fmt.Sprintf("entry %d: invalid surah number %d", i, entry.Number))
			continue
		}
		if seen[entry.Number] {
			problems = append(problems, fmt.Sprintf("surah %d: listed twice, keeping the first", entry.Number))
			continue
		}

		verses, err := mp.mapVerses(m.AudioBase, entry.Verses)
		if err != nil {
			problems = append(problems, fmt.Sprintf("surah %d: %v", entry.Number, err))
			continue
		}

		seen[entry.Number] = true
		surahs = append(surahs, &domain.Surah{
			Number:      entry.Number,
			Name:        entry.Name,
			EnglishName: entry.EnglishName,
			Verses:      verses,
			Source:      domain.SourceManifest,
			FetchedAt:   now,
		})
	}

	if len(surahs) == 0 {
		return nil, problems, fmt.Errorf("no valid surahs found in manifest")
	}
	return surahs, problems, nil
}

func (mp *Mapper) mapVerses(audioBase string, entries []VerseEntry) ([]domain.Verse, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no verses")
	}

	verses := make([]domain.Verse, 0, len(entries))
	for _, e := range entries {
		verses = append(verses, domain.Verse{
			Index:       e.Index,
			Text:        e.Text,
			Translation: e.Translation,
			AudioURL:    mp.resolveAudio(audioBase, strings.TrimSpace(e.Audio)),
		})
	}

	sort.SliceStable(verses, func(i, j int) bool { return verses[i].Index < verses[j].Index })
	for i, v := range verses {
		if v.Index != i+1 {
			return nil, fmt.Errorf("verses must be numbered 1..%d, found %d at position %d", len(verses), v.Index, i+1)
		}
	}
	return verses, nil
}

// resolveAudio turns a manifest audio reference into something the audio
// backend can open: an http(s) URL or an absolute file path.
func (mp *Mapper) resolveAudio(audioBase, audio string) string {
	if audio == "" {
		return ""
	}
	if u, err := url.Parse(audio); err == nil && u.Scheme != "" && u.Host != "" {
		return audio
	}
	if filepath.IsAbs(audio) {
		return audio
	}

	if audioBase != "" {
		if base, err := url.Parse(audioBase); err == nil && base.Scheme != "" && base.Host != "" {
			return base.JoinPath(audio).String()
		}
		return filepath.Join(audioBase, audio)
	}
	return filepath.Join(mp.baseDir, audio)
}
