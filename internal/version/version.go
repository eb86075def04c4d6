// Package version holds build metadata, set with -ldflags -X at link time.
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for a -version flag.
func String() string {
	sha := GitSHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return fmt.Sprintf("npcloud %s (%s, built %s)", Version, sha, BuildTime)
}
