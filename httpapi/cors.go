package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	corsMethods = []string{"GET", "POST", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Authorization", headerUserID, headerOrgID}
)

// corsMiddleware allows any origin when none are configured or one of them is
// "*". Otherwise only the listed origins are echoed, with credentials.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: corsMethods,
		AllowHeaders: corsHeaders,
		MaxAge:       12 * time.Hour,
	}
	origins, allowAll := corsOrigins(allowed)
	switch {
	case allowAll:
		cfg.AllowAllOrigins = true
	case len(origins) == 0:
		// Only malformed origins were configured; refuse every origin.
		cfg.AllowOriginFunc = func(string) bool { return false }
	default:
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// corsOrigins skips entries without an http(s) scheme because cors.Config
// rejects them.
func corsOrigins(allowed []string) (origins []string, allowAll bool) {
	configured := false
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
			continue
		case origin == "*":
			return nil, true
		case strings.HasPrefix(origin, "http://"), strings.HasPrefix(origin, "https://"):
			origins = append(origins, origin)
		}
		configured = true
	}
	return origins, !configured
}
