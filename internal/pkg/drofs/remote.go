package drofs

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// remoteChunkSize is the number of bytes fetched per request when reading
// from an object store.
const remoteChunkSize = 8 * 1024 * 1024

// chunkCache holds recently fetched object chunks. Training pipelines read
// input files once to build the quantile sketch and again to bin rows, so
// keeping hot chunks resident avoids a second round of remote fetches.
var chunkCache *lru.Cache

func init() {
	// 32 chunks * 8Mb = 256Mb ceiling
	chunkCache, _ = lru.New(32)
}

func chunkCacheKey(store, objectPath string, offset int64) string {
	return fmt.Sprintf("%s:%s:%d", store, objectPath, offset)
}

// parseRemotePath splits a "scheme://bucket/key" path into its bucket and
// key components.
func parseRemotePath(scheme, remotePath string) (bucket string, key string, err error) {
	parsed, err := url.Parse(remotePath)
	if err != nil {
		return "", "", err
	}
	if parsed.Scheme != scheme {
		return "", "", fmt.Errorf("invalid %s path: %s", scheme, remotePath)
	}
	return parsed.Host, strings.TrimPrefix(parsed.Path, "/"), nil
}

// globPrefix returns the non-wildcard prefix of a key glob. Object stores
// can only list by prefix, so listing fetches keys under the prefix and
// filters them against the full glob client-side.
func globPrefix(keyGlob string) string {
	idx := strings.IndexAny(keyGlob, "*?[")
	if idx == -1 {
		return keyGlob
	}
	return keyGlob[:idx]
}

func globMatch(keyGlob, key string) bool {
	if keyGlob == key {
		return true
	}
	matched, err := path.Match(keyGlob, key)
	return err == nil && matched
}
