package domain

import "time"

// MaxSurah is the number of chapters in the Quran.
const MaxSurah = 114

// Verse is one ayah of a surah together with its recitation clip.
type Verse struct {
	// Index is 1-based within the surah.
	Index int `json:"index"`

	Text        string `json:"text,omitempty"`
	Translation string `json:"translation,omitempty"`

	// AudioURL is empty when no recitation is available for this verse.
	AudioURL string `json:"audioUrl,omitempty"`
}

// HasAudio reports whether the verse can be played.
func (v Verse) HasAudio() bool {
	return v.AudioURL != ""
}

// Surah is an ordered list of verses plus where it came from.
type Surah struct {
	Number      int     `json:"number"`
	Name        string  `json:"name,omitempty"`
	EnglishName string  `json:"englishName,omitempty"`
	Verses      []Verse `json:"verses"`

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	// Source is where the verses were loaded from.
	// Example: manifest, alquran
	Source string `json:"source"`

	// FetchedAt is when the verses were loaded.
	FetchedAt time.Time `json:"fetchedAt"`
}

const (
	SourceManifest = "manifest"
	SourceAlQuran  = "alquran"
)

// ValidSurah reports whether n is a surah number.
func ValidSurah(n int) bool {
	return n >= 1 && n <= MaxSurah
}
