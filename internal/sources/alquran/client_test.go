package alquran

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/noor/internal/domain"
)

const ikhlasAudio = `{"code":200,"status":"OK","data":{"number":112,"name":"سُورَةُ الإِخۡلَاصِ","englishName":"Al-Ikhlaas","numberOfAyahs":4,
"edition":{"identifier":"ar.alafasy","format":"audio"},
"ayahs":[
 {"number":6222,"numberInSurah":1,"text":"قُلْ هُوَ ٱللَّهُ أَحَدٌ","audio":"https://cdn.test/6222.mp3"},
 {"number":6223,"numberInSurah":2,"text":"ٱللَّهُ ٱلصَّمَدُ","audio":"https://cdn.test/6223.mp3"},
 {"number":6224,"numberInSurah":3,"text":"لَمْ يَلِدْ وَلَمْ يُولَدْ","audioSecondary":["https://alt.test/6224.mp3"]},
 {"number":6225,"numberInSurah":4,"text":"وَلَمْ يَكُن لَّهُۥ كُفُوًا أَحَدٌۢ"}
]}}`

const ikhlasSahih = `{"code":200,"status":"OK","data":{"number":112,"englishName":"Al-Ikhlaas","numberOfAyahs":4,
"edition":{"identifier":"en.sahih","format":"text"},
"ayahs":[
 {"number":6222,"numberInSurah":1,"text":"Say, He is Allah, [who is] One,"},
 {"number":6223,"numberInSurah":2,"text":"Allah, the Eternal Refuge."},
 {"number":6224,"numberInSurah":3,"text":"He neither begets nor is born,"},
 {"number":6225,"numberInSurah":4,"text":"Nor is there to Him any equivalent."}
]}}`

func newServer(t *testing.T, routes map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"status":"Not Found","data":"Surah not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchSurah_MergesEditions(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/v1/surah/112/ar.alafasy": ikhlasAudio,
		"/v1/surah/112/en.sahih":   ikhlasSahih,
	})
	c, err := NewClient(srv.URL, "", "", srv.Client())
	require.NoError(t, err)

	s, err := c.FetchSurah(context.Background(), 112)
	require.NoError(t, err)

	assert.Equal(t, 112, s.Number)
	assert.Equal(t, "Al-Ikhlaas", s.EnglishName)
	assert.Equal(t, domain.SourceAlQuran, s.Source)
	assert.False(t, s.FetchedAt.IsZero())
	require.Len(t, s.Verses, 4)

	assert.Equal(t, "Allah, the Eternal Refuge.", s.Verses[1].Translation)
	assert.Equal(t, "https://cdn.test/6222.mp3", s.Verses[0].AudioURL)
	assert.Equal(t, "https://alt.test/6224.mp3", s.Verses[2].AudioURL, "falls back to the secondary clip")
	assert.False(t, s.Verses[3].HasAudio())
}

func TestFetchSurah_EditionsInParallel(t *testing.T) {
	bodies := map[string]string{
		"/v1/surah/112/ar.alafasy": ikhlasAudio,
		"/v1/surah/112/en.sahih":   ikhlasSahih,
	}

	// each request waits until the other one has arrived
	var arrived atomic.Int32
	both := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if arrived.Add(1) == 2 {
			close(both)
		}
		select {
		case <-both:
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(bodies[r.URL.Path]))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "", "", srv.Client())
	require.NoError(t, err)

	s, err := c.FetchSurah(context.Background(), 112)
	require.NoError(t, err)
	assert.Len(t, s.Verses, 4)
}

func TestFetchSurah_SkipTranslation(t *testing.T) {
	srv, hits := newServer(t, map[string]string{"/v1/surah/112/ar.alafasy": ikhlasAudio})
	c, err := NewClient(srv.URL, "ar.alafasy", "-", srv.Client())
	require.NoError(t, err)

	s, err := c.FetchSurah(context.Background(), 112)
	require.NoError(t, err)
	assert.Empty(t, s.Verses[0].Translation)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchSurah_OutOfRangeMakesNoRequest(t *testing.T) {
	srv, hits := newServer(t, nil)
	c, err := NewClient(srv.URL, "", "", srv.Client())
	require.NoError(t, err)

	for _, n := range []int{0, 115, -3} {
		_, err := c.FetchSurah(context.Background(), n)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestFetchSurah_BadResponses(t *testing.T) {
	tests := []struct {
		name   string
		routes map[string]string
	}{
		{"not found", map[string]string{}},
		{"api error code", map[string]string{
			"/v1/surah/112/ar.alafasy": `{"code":400,"status":"Bad Request","data":"Invalid edition"}`,
		}},
		{"not json", map[string]string{"/v1/surah/112/ar.alafasy": `<html>maintenance</html>`}},
		{"wrong surah", map[string]string{
			"/v1/surah/112/ar.alafasy": `{"code":200,"status":"OK","data":{"number":1,"ayahs":[{"numberInSurah":1}]}}`,
		}},
		{"gap in numbering", map[string]string{
			"/v1/surah/112/ar.alafasy": `{"code":200,"status":"OK","data":{"number":112,"ayahs":[{"numberInSurah":1},{"numberInSurah":3}]}}`,
			"/v1/surah/112/en.sahih":   ikhlasSahih,
		}},
		{"translation down", map[string]string{"/v1/surah/112/ar.alafasy": ikhlasAudio}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.routes)
			c, err := NewClient(srv.URL, "", "", srv.Client())
			require.NoError(t, err)

			_, err = c.FetchSurah(context.Background(), 112)
			assert.Error(t, err)
		})
	}
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	_, err := NewClient("not a url", "", "", nil)
	assert.Error(t, err)
}
