// Package playlist reads explicit episode URL lists from M3U8 playlists.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/bugmaschine/epfetch/pkg/httpx"
)

var ErrNoEntries = errors.New("playlist has no entries")

type Loader struct {
	client  *http.Client
	headers httpx.Headers
}

func NewLoader(client *http.Client, headers httpx.Headers) *Loader {
	if client == nil {
		client = httpx.NewClient()
	}
	return &Loader{client: client, headers: headers}
}

// Load returns the entry URLs of the playlist at src, a local path or an
// http(s) URL, in playlist order. Master playlists resolve to their variant
// with the highest bandwidth.
func (l *Loader) Load(ctx context.Context, src string) ([]string, error) {
	if isRemote(src) {
		base, err := url.Parse(src)
		if err != nil {
			return nil, err
		}
		return l.loadRemote(ctx, base, true)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	return l.decode(ctx, f, nil)
}

func (l *Loader) loadRemote(ctx context.Context, u *url.URL, followMaster bool) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	l.headers.Apply(req)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	if !followMaster {
		return l.decodeMedia(resp.Body, resp.Request.URL)
	}
	return l.decode(ctx, resp.Body, resp.Request.URL)
}

func (l *Loader) decode(ctx context.Context, r io.Reader, base *url.URL) ([]string, error) {
	p, listType, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode m3u8: %w", err)
	}

	switch listType {
	case m3u8.MEDIA:
		return entries(p.(*m3u8.MediaPlaylist), base)
	case m3u8.MASTER:
		master := p.(*m3u8.MasterPlaylist)
		if len(master.Variants) == 0 {
			return nil, fmt.Errorf("no variants in master playlist")
		}

		// Sort variants by bandwidth (descending) as simple quality heuristic
		sort.Slice(master.Variants, func(i, j int) bool {
			return master.Variants[i].Bandwidth > master.Variants[j].Bandwidth
		})

		variantURL, err := resolve(base, master.Variants[0].URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse variant URL: %w", err)
		}
		slog.Debug("Following master playlist variant", "url", variantURL, "bandwidth", master.Variants[0].Bandwidth)
		return l.loadRemote(ctx, variantURL, false)
	default:
		return nil, fmt.Errorf("unsupported playlist type")
	}
}

func (l *Loader) decodeMedia(r io.Reader, base *url.URL) ([]string, error) {
	p, listType, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode media playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("variant is not a media playlist")
	}
	return entries(p.(*m3u8.MediaPlaylist), base)
}

func entries(p *m3u8.MediaPlaylist, base *url.URL) ([]string, error) {
	var urls []string
	for _, seg := range p.Segments {
		if seg == nil {
			break
		}
		u, err := resolve(base, seg.URI)
		if err != nil {
			return nil, fmt.Errorf("invalid entry %q: %w", seg.URI, err)
		}
		urls = append(urls, u.String())
	}
	if len(urls) == 0 {
		return nil, ErrNoEntries
	}
	return urls, nil
}

// resolve makes ref absolute. Local playlists have no base and must list
// absolute URLs.
func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		return u, nil
	}
	if base == nil {
		return nil, fmt.Errorf("relative url %q in local playlist", ref)
	}
	return base.ResolveReference(u), nil
}

func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
