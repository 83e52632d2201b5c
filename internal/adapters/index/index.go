// Package index implements the PackageIndex port for querying package
// candidates from conda style channels.
package index

import (
	"cmp"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.kiln.dev/kiln/internal/semver"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

const (
	defaultIndexBase  = "https://conda.anaconda.org"
	noarchSubdir      = "noarch"
	httpClientTimeout = 30 * time.Second

	indexURLEnv = "KILN_INDEX_URL"
	cacheDirEnv = "KILN_CACHE_DIR"
)

// Index implements ports.PackageIndex backed by per channel repodata
// documents with local query caching.
type Index struct {
	baseURL    string
	subdirs    []string
	httpClient *http.Client
	cache      ports.IndexCache

	group    singleflight.Group
	mu       sync.RWMutex
	channels map[string]map[string][]domain.PackageRecord
}

// NewIndex creates a PackageIndex backed by channel repodata with a disk
// cache for query results.
func NewIndex() (*Index, error) {
	cache, err := NewDiskCache(cacheDir())
	if err != nil {
		return nil, err
	}
	return NewIndexWithClient(indexBaseURL(), cache, &http.Client{
		Timeout: httpClientTimeout,
	}), nil
}

// NewIndexWithClient creates an Index with a custom base URL, cache and http
// client (used for testing).
func NewIndexWithClient(baseURL string, cache ports.IndexCache, client *http.Client) *Index {
	return &Index{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		subdirs:    []string{CurrentSubdir(), noarchSubdir},
		httpClient: client,
		cache:      cache,
		channels:   make(map[string]map[string][]domain.PackageRecord),
	}
}

// Search returns every candidate on the given channel matching the spec,
// oldest first. It checks the query cache first, then filters the channel's
// repodata, fetched once per channel and held in memory.
func (i *Index) Search(ctx context.Context, channel, spec string) ([]domain.PackageRecord, error) {
	parsed := domain.ParseMatchSpec(spec)

	records, ok, err := i.cache.Get(channel, spec)
	if err == nil && ok {
		return records, nil
	}

	byName, err := i.channelRecords(ctx, channel)
	if err != nil {
		return nil, err
	}

	records = make([]domain.PackageRecord, 0)
	for _, rec := range byName[parsed.Name.String()] {
		if matchesSpec(parsed, rec.Version) {
			records = append(records, rec)
		}
	}

	// A failed cache write only costs a re-query on the next run.
	_ = i.cache.Put(channel, spec, records)

	return records, nil
}

// channelRecords returns the channel's candidates grouped by package name,
// fetching and indexing its repodata on first use.
func (i *Index) channelRecords(ctx context.Context, channel string) (map[string][]domain.PackageRecord, error) {
	i.mu.RLock()
	byName, ok := i.channels[channel]
	i.mu.RUnlock()
	if ok {
		return byName, nil
	}

	v, err, _ := i.group.Do(channel, func() (any, error) {
		byName, err := i.loadChannel(ctx, channel)
		if err != nil {
			return nil, err
		}
		i.mu.Lock()
		i.channels[channel] = byName
		i.mu.Unlock()
		return byName, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string][]domain.PackageRecord), nil
}

// loadChannel fetches the repodata of every platform directory the channel
// serves and indexes the entries by package name, oldest candidate first.
func (i *Index) loadChannel(ctx context.Context, channel string) (map[string][]domain.PackageRecord, error) {
	byName := make(map[string][]domain.PackageRecord)
	for _, subdir := range i.subdirs {
		doc, err := i.fetchRepodata(ctx, channel, subdir)
		if err != nil {
			return nil, err
		}
		for _, entry := range doc.Packages {
			byName[entry.Name] = append(byName[entry.Name], entryRecord(entry))
		}
		for _, entry := range doc.CondaPackages {
			byName[entry.Name] = append(byName[entry.Name], entryRecord(entry))
		}
	}

	for _, records := range byName {
		slices.SortFunc(records, compareRecords)
	}

	return byName, nil
}

// fetchRepodata retrieves one platform directory's repodata document.
// Channels commonly serve only a subset of platform directories, so a
// missing document is an empty one, not an error.
func (i *Index) fetchRepodata(ctx context.Context, channel, subdir string) (*Repodata, error) {
	url := i.repodataURL(channel, subdir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrIndexRequestFailed.Error())
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrIndexRequestFailed.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return &Repodata{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		reqErr := zerr.With(domain.ErrIndexRequestFailed, "status_code", resp.StatusCode)
		reqErr = zerr.With(reqErr, "channel", channel)
		return nil, zerr.With(reqErr, "subdir", subdir)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrIndexRequestFailed.Error())
	}

	var doc Repodata
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, zerr.Wrap(err, domain.ErrIndexParseFailed.Error())
	}

	return &doc, nil
}

// repodataURL builds the document URL for a channel and platform directory.
// Bare channel names resolve against the index base URL, full URLs are used
// as given.
func (i *Index) repodataURL(channel, subdir string) string {
	base := channel
	if !strings.Contains(base, "://") {
		base = i.baseURL + "/" + base
	}
	return strings.TrimSuffix(base, "/") + "/" + subdir + "/repodata.json"
}

// entryRecord converts a repodata entry into a package record.
func entryRecord(entry PackageEntry) domain.PackageRecord {
	deps := entry.Depends
	if deps == nil {
		deps = []string{}
	}
	return domain.PackageRecord{
		Name:         entry.Name,
		Version:      entry.Version,
		BuildNumber:  entry.BuildNumber,
		BuildString:  entry.Build,
		Timestamp:    entry.Timestamp,
		Dependencies: deps,
	}
}

// compareRecords orders candidates by version, then build number, then
// timestamp, then build string.
func compareRecords(a, b domain.PackageRecord) int {
	if c := semver.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(a.BuildNumber, b.BuildNumber); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.BuildString, b.BuildString)
}

// matchesSpec reports whether a candidate version satisfies a parsed spec.
// Compound constraints such as ">=1.2,<1.3" must hold part by part. Specs
// that did not parse into a version constraint match every candidate.
func matchesSpec(spec domain.MatchSpec, version string) bool {
	if !spec.HasVersion() {
		return true
	}
	constraint := strings.TrimSpace(strings.TrimPrefix(spec.Raw, spec.Name.String()))
	for _, part := range strings.Split(constraint, ",") {
		if !matchesConstraint(strings.TrimSpace(part), version) {
			return false
		}
	}
	return true
}

// matchesConstraint applies a single constraint to a candidate version.
// Operator constraints compare, "=" pins match fuzzily, and bare pins match
// exactly unless they carry a trailing glob.
func matchesConstraint(constraint, version string) bool {
	fields := strings.Fields(constraint)
	if len(fields) == 0 {
		return true
	}
	// A trailing build string selector never constrains the version.
	constraint = fields[0]

	op := ""
	for _, known := range []string{">=", "<=", "==", "!=", ">", "<", "="} {
		if strings.HasPrefix(constraint, known) {
			op = known
			constraint = constraint[len(known):]
			break
		}
	}

	switch op {
	case ">=":
		return semver.Compare(version, constraint) >= 0
	case ">":
		return semver.Compare(version, constraint) > 0
	case "<=":
		return semver.Compare(version, constraint) <= 0
	case "<":
		return semver.Compare(version, constraint) < 0
	case "!=":
		return !matchesPin(constraint, version)
	case "=":
		if !strings.HasSuffix(constraint, "*") {
			constraint += "*"
		}
		return matchesPin(constraint, version)
	default:
		return matchesPin(constraint, version)
	}
}

// matchesPin reports an exact version match, honoring trailing "*" globs:
// "1.2.*" matches "1.2" itself and any release below it.
func matchesPin(pin, version string) bool {
	if base, ok := strings.CutSuffix(pin, "*"); ok {
		base = strings.TrimSuffix(base, ".")
		return version == base || strings.HasPrefix(version, base+".")
	}
	return semver.Compare(version, pin) == 0
}

// indexBaseURL resolves the channel base URL, honoring the KILN_INDEX_URL
// override.
func indexBaseURL() string {
	if url := os.Getenv(indexURLEnv); url != "" {
		return url
	}
	return defaultIndexBase
}

// cacheDir resolves the query cache location, honoring the KILN_CACHE_DIR
// override.
func cacheDir() string {
	if dir := os.Getenv(cacheDirEnv); dir != "" {
		return filepath.Join(dir, domain.IndexDirName)
	}
	return domain.DefaultIndexCachePath()
}

// CurrentSubdir returns the channel platform directory for the current
// system.
func CurrentSubdir() string {
	goos := runtime.GOOS
	goarch := runtime.GOARCH

	switch {
	case goos == "linux" && goarch == "amd64":
		return "linux-64"
	case goos == "linux" && goarch == "arm64":
		return "linux-aarch64"
	case goos == "linux" && goarch == "ppc64le":
		return "linux-ppc64le"
	case goos == "darwin" && goarch == "amd64":
		return "osx-64"
	case goos == "darwin" && goarch == "arm64":
		return "osx-arm64"
	case goos == "windows" && goarch == "amd64":
		return "win-64"
	default:
		// Fall back to the most common platform for unknown systems.
		return "linux-64"
	}
}
