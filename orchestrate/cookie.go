package orchestrate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingidentity/ping-go/storage"
)

// CookiePriority runs after protocol modules so that the request URL is
// known when cookies are attached.
const CookiePriority = 100

// StoredCookie is the persisted form of a cookie
type StoredCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
	// Origin is the URL the cookie was received from
	Origin string `json:"origin"`
}

func newStoredCookie(c *http.Cookie, origin *url.URL, now time.Time) StoredCookie {
	expires := c.Expires
	if c.MaxAge > 0 {
		expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	return StoredCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  expires,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		Origin:   origin.String(),
	}
}

// Cookie converts back to an *http.Cookie
func (s StoredCookie) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Domain:   s.Domain,
		Path:     s.Path,
		Expires:  s.Expires,
		Secure:   s.Secure,
		HttpOnly: s.HTTPOnly,
	}
}

// Expired reports whether the cookie expired before now
func (s StoredCookie) Expired(now time.Time) bool {
	return !s.Expires.IsZero() && !s.Expires.After(now)
}

// CookieConfig configures the Cookie module
type CookieConfig struct {
	// Persist lists the cookie names saved to Storage. Other cookies only
	// live in memory for the lifetime of the workflow.
	Persist []string
	Storage storage.Storage[[]StoredCookie]
}

// Cookie keeps the cookies set by the server and sends them back on later
// requests. Cookies named in Persist survive restarts through Storage.
var Cookie = NewModule("cookie",
	func() *CookieConfig {
		return &CookieConfig{Storage: storage.NewMemory[[]StoredCookie]()}
	},
	setupCookie,
)

type cookieState struct {
	jar atomic.Pointer[cookiejar.Jar]
}

func (s *cookieState) reset() {
	jar, _ := cookiejar.New(nil)
	s.jar.Store(jar)
}

func (s *cookieState) attach(req *Request) *Request {
	full, err := req.FullURL()
	if err != nil {
		return req
	}
	u, err := url.Parse(full)
	if err != nil {
		return req
	}
	return req.Cookies(s.jar.Load().Cookies(u)...)
}

func setupCookie(s *Setup[CookieConfig]) {
	cfg := s.Config()
	logger := s.Logger()
	state := &cookieState{}
	state.reset()
	// guards the read-modify-write of Storage across concurrent flows
	var storeMu sync.Mutex

	s.Initialize(func(ctx context.Context) error {
		if cfg.Storage == nil {
			return nil
		}
		stored, ok, err := cfg.Storage.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to load cookies: %w", err)
		}
		if !ok {
			return nil
		}

		now := time.Now()
		for _, sc := range stored {
			if sc.Expired(now) {
				continue
			}
			origin, err := url.Parse(sc.Origin)
			if err != nil {
				logger.Warn("dropping stored cookie with invalid origin", "cookie", sc.Name, "error", err)
				continue
			}
			state.jar.Load().SetCookies(origin, []*http.Cookie{sc.Cookie()})
		}
		return nil
	})

	s.Start(func(ctx context.Context, fc *FlowContext, req *Request) (*Request, error) {
		return state.attach(req), nil
	})

	s.Next(func(ctx context.Context, fc *FlowContext, current *ContinueNode, req *Request) (*Request, error) {
		return state.attach(req), nil
	})

	s.Response(func(ctx context.Context, fc *FlowContext, resp *Response) error {
		cookies := resp.Cookies()
		if len(cookies) == 0 || resp.Request == nil {
			return nil
		}
		full, err := resp.Request.FullURL()
		if err != nil {
			return nil
		}
		origin, err := url.Parse(full)
		if err != nil {
			return nil
		}

		state.jar.Load().SetCookies(origin, cookies)

		storeMu.Lock()
		err = persistCookies(ctx, cfg, origin, cookies, time.Now())
		storeMu.Unlock()
		if err != nil {
			logger.Warn("failed to persist cookies", "error", err)
		}
		return nil
	})

	s.SignOff(func(ctx context.Context, req *Request) (*Request, error) {
		req = state.attach(req)
		state.reset()
		if cfg.Storage != nil {
			storeMu.Lock()
			err := cfg.Storage.Delete(ctx)
			storeMu.Unlock()
			if err != nil {
				logger.Warn("failed to delete cookies", "error", err)
			}
		}
		return req, nil
	})
}

// persistCookies saves the cookies named in cfg.Persist. An expired cookie
// removes the stored cookie of the same name.
func persistCookies(ctx context.Context, cfg *CookieConfig, origin *url.URL, cookies []*http.Cookie, now time.Time) error {
	if len(cfg.Persist) == 0 || cfg.Storage == nil {
		return nil
	}

	stored, _, err := cfg.Storage.Get(ctx)
	if err != nil {
		return err
	}

	changed := false
	for _, c := range cookies {
		if !slices.Contains(cfg.Persist, c.Name) {
			continue
		}
		stored = slices.DeleteFunc(stored, func(sc StoredCookie) bool {
			return sc.Name == c.Name
		})
		changed = true
		if cookieExpired(c, now) {
			continue
		}
		stored = append(stored, newStoredCookie(c, origin, now))
	}

	if !changed {
		return nil
	}
	return cfg.Storage.Save(ctx, stored)
}

func cookieExpired(c *http.Cookie, now time.Time) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(now)
}
