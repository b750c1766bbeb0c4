// Package alquran fetches surahs from the api.alquran.cloud REST API.
package alquran

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/utils"
)

const (
	DefaultBaseURL            = "https://api.alquran.cloud"
	DefaultAudioEdition       = "ar.alafasy"
	DefaultTranslationEdition = "en.sahih"
	DefaultTimeout            = 10 * time.Second

	// largest surah payload is well under this
	maxBodyBytes = 8 << 20
)

var ErrBadResponse = errors.New("unexpected response from alquran api")

// Client fetches one surah as two editions, an audio edition carrying the
// Arabic text and clip urls, and a translation edition.
type Client struct {
	baseURL            *url.URL
	audioEdition       string
	translationEdition string
	http               *http.Client
	now                func() time.Time
}

// NewClient creates a client. Empty arguments fall back to the defaults;
// translationEdition may be "-" to skip translations.
func NewClient(baseURL, audioEdition, translationEdition string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid alquran base url %q", baseURL)
	}
	if audioEdition == "" {
		audioEdition = DefaultAudioEdition
	}
	if translationEdition == "" {
		translationEdition = DefaultTranslationEdition
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		baseURL:            u,
		audioEdition:       audioEdition,
		translationEdition: translationEdition,
		http:               httpClient,
		now:                time.Now,
	}, nil
}

// envelope is the API's response wrapper.
//
//	{"code":200,"status":"OK","data":{...}}
type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type surahPayload struct {
	Number        int     `json:"number"`
	Name          string  `json:"name"`
	EnglishName   string  `json:"englishName"`
	NumberOfAyahs int     `json:"numberOfAyahs"`
	Ayahs         []ayah  `json:"ayahs"`
	Edition       edition `json:"edition"`
}

type ayah struct {
	Number         int      `json:"number"`
	NumberInSurah  int      `json:"numberInSurah"`
	Text           string   `json:"text"`
	Audio          string   `json:"audio,omitempty"`
	AudioSecondary []string `json:"audioSecondary,omitempty"`
}

type edition struct {
	Identifier string `json:"identifier"`
	Format     string `json:"format"`
}

// FetchSurah loads surah n and merges its two editions verse by verse.
func (c *Client) FetchSurah(ctx context.Context, n int) (*domain.Surah, error) {
	if !domain.ValidSurah(n) {
		return nil, fmt.Errorf("surah number %d out of range", n)
	}

	// both editions at once; the first failure cancels the other
	var recited, translated *surahPayload
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recited, err = c.fetchEdition(gctx, n, c.audioEdition)
		return err
	})
	if c.translationEdition != "-" {
		g.Go(func() (err error) {
			translated, err = c.fetchEdition(gctx, n, c.translationEdition)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	verses, err := merge(recited, translated)
	if err != nil {
		return nil, fmt.Errorf("surah %d: %w", n, err)
	}

	return &domain.Surah{
		Number:      recited.Number,
		Name:        recited.Name,
		EnglishName: recited.EnglishName,
		Verses:      verses,
		Source:      domain.SourceAlQuran,
		FetchedAt:   c.now(),
	}, nil
}

func (c *Client) fetchEdition(ctx context.Context, n int, ed string) (*surahPayload, error) {
	u := c.baseURL.JoinPath("v1", "surah", strconv.Itoa(n), ed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ed, err)
	}
	defer utils.MustClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ed, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s returned http %d", ErrBadResponse, ed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned code %d (%s)", ErrBadResponse, ed, env.Code, strings.TrimSpace(env.Status))
	}

	var p surahPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrBadResponse, ed, err)
	}
	if p.Number != n {
		return nil, fmt.Errorf("%w: asked for surah %d, got %d", ErrBadResponse, n, p.Number)
	}
	return &p, nil
}

func merge(recited, translated *surahPayload) ([]domain.Verse, error) {
	if len(recited.Ayahs) == 0 {
		return nil, errors.New("no verses")
	}

	translations := make(map[int]string)
	if translated != nil {
		for _, a := range translated.Ayahs {
			translations[a.NumberInSurah] = a.Text
		}
	}

	verses := make([]domain.Verse, len(recited.Ayahs))
	for i, a := range recited.Ayahs {
		if a.NumberInSurah != i+1 {
			return nil, fmt.Errorf("verse at position %d is numbered %d", i+1, a.NumberInSurah)
		}
		audio := a.Audio
		if audio == "" && len(a.AudioSecondary) > 0 {
			audio = a.AudioSecondary[0]
		}
		verses[i] = domain.Verse{
			Index:       a.NumberInSurah,
			Text:        a.Text,
			Translation: translations[a.NumberInSurah],
			AudioURL:    audio,
		}
	}
	return verses, nil
}
