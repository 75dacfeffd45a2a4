package orchestrate

import (
	"context"
	"net/http"
)

// CustomHeaderPriority runs header injection before protocol modules
const CustomHeaderPriority = 0

// CustomHeaderConfig holds the headers added to every start and next request
type CustomHeaderConfig struct {
	Headers http.Header
}

// Header adds or replaces a header. Names are case-insensitive.
func (c *CustomHeaderConfig) Header(name, value string) {
	if c.Headers == nil {
		c.Headers = http.Header{}
	}
	c.Headers.Set(name, value)
}

// CustomHeader adds the configured headers, plus the SDK identification
// headers, to start and next requests.
var CustomHeader = NewModule("customHeader",
	func() *CustomHeaderConfig {
		cfg := &CustomHeaderConfig{}
		cfg.Header("X-Requested-With", "ping-sdk")
		cfg.Header("X-Requested-Platform", "go")
		return cfg
	},
	func(s *Setup[CustomHeaderConfig]) {
		cfg := s.Config()
		apply := func(req *Request) *Request {
			for name := range cfg.Headers {
				req.Header(name, cfg.Headers.Get(name))
			}
			return req
		}

		s.Start(func(ctx context.Context, fc *FlowContext, req *Request) (*Request, error) {
			return apply(req), nil
		})
		s.Next(func(ctx context.Context, fc *FlowContext, current *ContinueNode, req *Request) (*Request, error) {
			return apply(req), nil
		})
	},
)
