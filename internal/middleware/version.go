package middleware

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one published API version
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active", "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
}

type VersionMiddleware struct {
	supported map[string]APIVersion
}

func NewVersionMiddleware(versions ...APIVersion) *VersionMiddleware {
	if len(versions) == 0 {
		versions = []APIVersion{{Version: "v1", Status: "active"}}
	}
	vm := &VersionMiddleware{supported: make(map[string]APIVersion, len(versions))}
	for _, v := range versions {
		vm.supported[v.Version] = v
	}
	return vm
}

// VersionHeader stamps responses with the API version and, for deprecated
// versions, the sunset date
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)
			if ver, ok := vm.supported[version]; ok && ver.Status == "deprecated" {
				h.Set("X-API-Deprecated", "true")
				if ver.SunsetDate != nil {
					h.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
				}
			}
			return next(c)
		}
	}
}

// RejectUnknownVersion answers 404 for /vN paths that are not published
func (vm *VersionMiddleware) RejectUnknownVersion() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := versionFromPath(c.Request().URL.Path)
			if version == "" {
				return next(c)
			}
			if _, ok := vm.supported[version]; !ok {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error":              "Unsupported API version",
					"supported_versions": strings.Join(vm.versions(), ", "),
				})
			}
			return next(c)
		}
	}
}

func versionFromPath(path string) string {
	if len(path) < 3 || path[0] != '/' || path[1] != 'v' {
		return ""
	}
	end := strings.IndexByte(path[1:], '/')
	if end < 0 {
		end = len(path) - 1
	}
	segment := path[1 : end+1]
	if len(segment) < 2 {
		return ""
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return segment
}

func (vm *VersionMiddleware) versions() []string {
	out := make([]string, 0, len(vm.supported))
	for v := range vm.supported {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
