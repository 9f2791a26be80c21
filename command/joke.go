package command

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-json-experiment/json"
	"golang.org/x/sync/singleflight"
)

// Jokes is a cache of jokes fetched from a Reddit listing.
type Jokes struct {
	// HTTP is the client used to fetch jokes.
	HTTP *http.Client
	// URL is the listing URL.
	URL string

	// fetches collapses concurrent refreshes into one request.
	fetches singleflight.Group

	mu      sync.Mutex
	posts   []Post
	checked time.Time
}

// JokesURL is the default joke listing.
const JokesURL = "https://www.reddit.com/r/Jokes/hot.json?limit=50"

// jokeMax is the longest joke text shown.
const jokeMax = 1500

// refresh is how long fetched jokes are used before fetching again.
const refresh = time.Hour

// Post is a single joke.
type Post struct {
	Title    string
	Text     string
	Link     string
	Score    int
	Comments int
}

func (p Post) String() string {
	return fmt.Sprintf("**%s**\n%s\n<%s>\n- 👍 %d | 💬 %d", p.Title, p.Text, p.Link, p.Score, p.Comments)
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Selftext  string `json:"selftext"`
				Permalink string `json:"permalink"`
				Score     int    `json:"score"`
				Comments  int    `json:"num_comments"`
				Stickied  bool   `json:"stickied"`
				NSFW      bool   `json:"over_18"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Take removes and returns a random joke, fetching more if the cache is
// empty or stale.
func (j *Jokes) Take(ctx context.Context) (Post, error) {
	j.mu.Lock()
	stale := len(j.posts) == 0 || time.Since(j.checked) > refresh
	j.mu.Unlock()
	if stale {
		_, err, _ := j.fetches.Do(j.URL, func() (any, error) {
			p, err := j.fetch(ctx)
			if err != nil {
				return nil, err
			}
			j.mu.Lock()
			j.posts, j.checked = p, time.Now()
			j.mu.Unlock()
			return nil, nil
		})
		if err != nil {
			return Post{}, err
		}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.posts) == 0 {
		return Post{}, Warning("There are no jokes right now. Try again later.")
	}
	k := rand.IntN(len(j.posts))
	p := j.posts[k]
	j.posts[k] = j.posts[len(j.posts)-1]
	j.posts = j.posts[:len(j.posts)-1]
	return p, nil
}

func (j *Jokes) fetch(ctx context.Context) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't make joke request: %w", err)
	}
	req.Header.Set("User-Agent", "dizzy (Discord bot)")
	resp, err := j.HTTP.Do(req)
	if err != nil {
		return nil, Warnf("Could not request to Reddit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, Warnf("The request to Reddit failed with status code %s", resp.Status)
	}
	var l listing
	if err := json.UnmarshalRead(resp.Body, &l); err != nil {
		return nil, fmt.Errorf("couldn't decode jokes: %w", err)
	}
	r := make([]Post, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		d := c.Data
		if d.Stickied || d.NSFW {
			continue
		}
		r = append(r, Post{
			Title:    unescape(d.Title),
			Text:     truncate(strings.TrimSpace(unescape(d.Selftext)), jokeMax),
			Link:     "https://www.reddit.com" + d.Permalink,
			Score:    d.Score,
			Comments: d.Comments,
		})
	}
	return r, nil
}

func unescape(s string) string {
	return strings.ReplaceAll(s, "&amp;", "&")
}

// truncate cuts s to at most n bytes on a rune boundary, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
