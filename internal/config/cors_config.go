package config

import (
	"sort"
	"strings"
)

type AllowedOrigins map[string]struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	origins := make([]string, 0, len(a))
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins returns CORS_ALLOWED_ORIGINS, or just BASE_URL when it
// is unset.
func (c *mainConfig) GetAllowedOrigins() AllowedOrigins {
	raw := c.v.GetString(corsAllowedOriginsVar)
	if strings.TrimSpace(raw) == "" {
		raw = c.GetBaseURL()
	}
	origins := AllowedOrigins{}
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

func (c *mainConfig) GetAllowedMethods() string {
	return c.v.GetString(corsAllowedMethodsVar)
}

func (c *mainConfig) GetAllowedHeaders() string {
	return c.v.GetString(corsAllowedHeadersVar)
}
