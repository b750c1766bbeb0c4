package manifest

// Manifest is the top-level structure of a recitation manifest.
//
//	audioBase: https://cdn.example.org/alafasy
//	surahs:
//	  - number: 1
//	    name: الفاتحة
//	    englishName: Al-Fatiha
//	    verses:
//	      - index: 1
//	        text: بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ
//	        translation: In the name of Allah...
//	        audio: 001001.mp3
type Manifest struct {
	// AudioBase is prepended to relative audio paths. When empty they
	// resolve against the manifest's directory.
	AudioBase string       `yaml:"audioBase,omitempty"`
	Surahs    []SurahEntry `yaml:"surahs"`
}

// SurahEntry is one surah of the manifest.
type SurahEntry struct {
	Number      int          `yaml:"number"`
	Name        string       `yaml:"name,omitempty"`
	EnglishName string       `yaml:"englishName,omitempty"`
	Verses      []VerseEntry `yaml:"verses"`
}

// VerseEntry is one verse. Audio may be empty, a URL, or a path.
type VerseEntry struct {
	Index       int    `yaml:"index"`
	Text        string `yaml:"text,omitempty"`
	Translation string `yaml:"translation,omitempty"`
	Audio       string `yaml:"audio,omitempty"`
}
