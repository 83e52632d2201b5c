package index_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.kiln.dev/kiln/internal/adapters/index"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

// MockRoundTripper is a helper to mock http.Client behavior.
type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) *http.Response
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req), nil
}

func newMockClient(handler func(req *http.Request) *http.Response) *http.Client {
	return &http.Client{
		Transport: &MockRoundTripper{RoundTripFunc: handler},
	}
}

func jsonResponse(t *testing.T, doc index.Repodata) *http.Response {
	t.Helper()
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBuffer(body)),
		Header:     make(http.Header),
	}
}

func notFoundResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func newDiskCache(t *testing.T, dir string) *index.DiskCache {
	t.Helper()
	cache, err := index.NewDiskCache(dir)
	require.NoError(t, err)
	return cache
}

func TestIndex_Search(t *testing.T) {
	tmpDir := t.TempDir()

	subdirURL := "https://conda.anaconda.org/conda-forge/" + index.CurrentSubdir() + "/repodata.json"
	noarchURL := "https://conda.anaconda.org/conda-forge/noarch/repodata.json"

	subdirDoc := index.Repodata{
		Info: index.RepodataInfo{Subdir: index.CurrentSubdir()},
		Packages: map[string]index.PackageEntry{
			"numpy-1.26.0-py311_0.tar.bz2": {
				Name: "numpy", Version: "1.26.0", Build: "py311_0",
				Depends:   []string{"python >=3.11,<3.12.0a0", "libopenblas >=0.3.23"},
				Timestamp: 1693526400000,
			},
		},
		CondaPackages: map[string]index.PackageEntry{
			"numpy-2.1.3-py312_0.conda": {
				Name: "numpy", Version: "2.1.3", Build: "py312_0", BuildNumber: 1,
				Depends:   []string{"python >=3.12,<3.13.0a0"},
				Timestamp: 1730246400000,
			},
		},
	}
	noarchDoc := index.Repodata{
		Info: index.RepodataInfo{Subdir: "noarch"},
		Packages: map[string]index.PackageEntry{
			"tqdm-4.66.5-pyhd8ed1ab_0.tar.bz2": {
				Name: "tqdm", Version: "4.66.5", Build: "pyhd8ed1ab_0",
				Depends:   []string{"python >=3.7"},
				Timestamp: 1722556800000,
			},
		},
	}

	t.Run("Success", func(t *testing.T) {
		client := newMockClient(func(req *http.Request) *http.Response {
			switch req.URL.String() {
			case subdirURL:
				return jsonResponse(t, subdirDoc)
			case noarchURL:
				return jsonResponse(t, noarchDoc)
			default:
				return notFoundResponse()
			}
		})

		idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, filepath.Join(tmpDir, "success")), client)

		records, err := idx.Search(context.Background(), "conda-forge", "numpy")
		require.NoError(t, err)
		assert.Equal(t, []domain.PackageRecord{
			{
				Name: "numpy", Version: "1.26.0", BuildString: "py311_0",
				Dependencies: []string{"python >=3.11,<3.12.0a0", "libopenblas >=0.3.23"},
				Timestamp:    1693526400000,
			},
			{
				Name: "numpy", Version: "2.1.3", BuildNumber: 1, BuildString: "py312_0",
				Dependencies: []string{"python >=3.12,<3.13.0a0"},
				Timestamp:    1730246400000,
			},
		}, records)

		// Candidates from the noarch directory are part of the same channel.
		records, err = idx.Search(context.Background(), "conda-forge", "tqdm")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "4.66.5", records[0].Version)
	})

	t.Run("NoMatch", func(t *testing.T) {
		client := newMockClient(func(req *http.Request) *http.Response {
			if req.URL.String() == subdirURL {
				return jsonResponse(t, subdirDoc)
			}
			return notFoundResponse()
		})

		idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, filepath.Join(tmpDir, "no_match")), client)

		records, err := idx.Search(context.Background(), "conda-forge", "scipy")
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NotNil(t, records)
	})

	t.Run("MissingPlatformDir", func(t *testing.T) {
		client := newMockClient(func(_ *http.Request) *http.Response {
			return notFoundResponse()
		})

		idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, filepath.Join(tmpDir, "404")), client)

		records, err := idx.Search(context.Background(), "empty-channel", "numpy")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("APIError", func(t *testing.T) {
		client := newMockClient(func(_ *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(bytes.NewBufferString("Internal Server Error")),
			}
		})

		idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, filepath.Join(tmpDir, "500")), client)

		_, err := idx.Search(context.Background(), "conda-forge", "numpy")
		require.Error(t, err)
		assert.Contains(t, err.Error(), domain.ErrIndexRequestFailed.Error())
	})

	t.Run("ParseError", func(t *testing.T) {
		client := newMockClient(func(_ *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString("not json")),
			}
		})

		idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, filepath.Join(tmpDir, "parse")), client)

		_, err := idx.Search(context.Background(), "conda-forge", "numpy")
		require.Error(t, err)
		assert.Contains(t, err.Error(), domain.ErrIndexParseFailed.Error())
	})

	t.Run("CacheHit", func(t *testing.T) {
		cacheDir := filepath.Join(tmpDir, "cache_hit")

		setupClient := newMockClient(func(req *http.Request) *http.Response {
			if req.URL.String() == subdirURL {
				return jsonResponse(t, subdirDoc)
			}
			return notFoundResponse()
		})

		idxSetup := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, cacheDir), setupClient)
		want, err := idxSetup.Search(context.Background(), "conda-forge", "numpy")
		require.NoError(t, err)
		require.NotEmpty(t, want)

		// Now use a panic client to ensure no API call is made
		panicClient := newMockClient(func(_ *http.Request) *http.Response {
			panic("HTTP client should not be called on cache hit")
		})

		idxTest := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, cacheDir), panicClient)
		got, err := idxTest.Search(context.Background(), "conda-forge", "numpy")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("ChannelFetchedOnce", func(t *testing.T) {
		requests := 0
		client := newMockClient(func(req *http.Request) *http.Response {
			requests++
			switch req.URL.String() {
			case subdirURL:
				return jsonResponse(t, subdirDoc)
			case noarchURL:
				return jsonResponse(t, noarchDoc)
			default:
				return notFoundResponse()
			}
		})

		idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, filepath.Join(tmpDir, "once")), client)

		_, err := idx.Search(context.Background(), "conda-forge", "numpy")
		require.NoError(t, err)
		_, err = idx.Search(context.Background(), "conda-forge", "tqdm")
		require.NoError(t, err)

		// One fetch per platform directory, the second query reuses them.
		assert.Equal(t, 2, requests)
	})

	t.Run("FullURLChannel", func(t *testing.T) {
		teamURL := "https://packages.example.com/team-channel/" + index.CurrentSubdir() + "/repodata.json"
		client := newMockClient(func(req *http.Request) *http.Response {
			if req.URL.String() == teamURL {
				return jsonResponse(t, subdirDoc)
			}
			return notFoundResponse()
		})

		idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, filepath.Join(tmpDir, "url")), client)

		records, err := idx.Search(context.Background(), "https://packages.example.com/team-channel", "numpy")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}

func TestIndex_CacheFailures(t *testing.T) {
	doc := index.Repodata{
		Info: index.RepodataInfo{Subdir: index.CurrentSubdir()},
		Packages: map[string]index.PackageEntry{
			"numpy-1.26.4-py311_0.tar.bz2": {Name: "numpy", Version: "1.26.4", Build: "py311_0"},
		},
	}

	client := newMockClient(func(req *http.Request) *http.Response {
		if req.URL.Path == "/conda-forge/"+index.CurrentSubdir()+"/repodata.json" {
			return jsonResponse(t, doc)
		}
		return notFoundResponse()
	})

	t.Run("GetErrorFallsBackToFetch", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockCache := mocks.NewMockIndexCache(ctrl)
		mockCache.EXPECT().Get("conda-forge", "numpy").Return(nil, false, errors.New("corrupt cache entry"))
		mockCache.EXPECT().Put("conda-forge", "numpy", gomock.Any()).Return(nil)

		idx := index.NewIndexWithClient("https://conda.anaconda.org", mockCache, client)

		records, err := idx.Search(context.Background(), "conda-forge", "numpy")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "1.26.4", records[0].Version)
	})

	t.Run("PutErrorIgnored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockCache := mocks.NewMockIndexCache(ctrl)
		mockCache.EXPECT().Get("conda-forge", "numpy").Return(nil, false, nil)
		mockCache.EXPECT().Put("conda-forge", "numpy", gomock.Any()).Return(errors.New("disk full"))

		idx := index.NewIndexWithClient("https://conda.anaconda.org", mockCache, client)

		records, err := idx.Search(context.Background(), "conda-forge", "numpy")
		require.NoError(t, err)
		require.Len(t, records, 1)
	})
}

func TestIndex_SearchSpecFiltering(t *testing.T) {
	doc := index.Repodata{
		Info: index.RepodataInfo{Subdir: index.CurrentSubdir()},
		Packages: map[string]index.PackageEntry{
			"numpy-1.26.0-py311_0.tar.bz2": {Name: "numpy", Version: "1.26.0", Build: "py311_0"},
			"numpy-1.26.4-py311_0.tar.bz2": {Name: "numpy", Version: "1.26.4", Build: "py311_0"},
		},
		CondaPackages: map[string]index.PackageEntry{
			"numpy-2.0.1-py312_0.conda": {Name: "numpy", Version: "2.0.1", Build: "py312_0"},
			"numpy-2.1.3-py312_0.conda": {Name: "numpy", Version: "2.1.3", Build: "py312_0"},
		},
	}

	client := newMockClient(func(req *http.Request) *http.Response {
		if req.URL.Path == "/conda-forge/"+index.CurrentSubdir()+"/repodata.json" {
			return jsonResponse(t, doc)
		}
		return notFoundResponse()
	})

	idx := index.NewIndexWithClient("https://conda.anaconda.org", newDiskCache(t, t.TempDir()), client)

	tests := []struct {
		name string
		spec string
		want []string
	}{
		{
			name: "NameOnly",
			spec: "numpy",
			want: []string{"1.26.0", "1.26.4", "2.0.1", "2.1.3"},
		},
		{
			name: "ExactPin",
			spec: "numpy ==1.26.4",
			want: []string{"1.26.4"},
		},
		{
			name: "GlobPin",
			spec: "numpy 1.26.*",
			want: []string{"1.26.0", "1.26.4"},
		},
		{
			name: "BarePinIsExact",
			spec: "numpy 2.1.3",
			want: []string{"2.1.3"},
		},
		{
			name: "FuzzyEquals",
			spec: "numpy =1.26",
			want: []string{"1.26.0", "1.26.4"},
		},
		{
			name: "LowerBound",
			spec: "numpy >=2",
			want: []string{"2.0.1", "2.1.3"},
		},
		{
			name: "UpperBound",
			spec: "numpy <2.0",
			want: []string{"1.26.0", "1.26.4"},
		},
		{
			name: "CompoundRange",
			spec: "numpy >=1.26.4,<2.1",
			want: []string{"1.26.4", "2.0.1"},
		},
		{
			name: "ExclusionConstraint",
			spec: "numpy >=1.26,!=2.0.1",
			want: []string{"1.26.0", "1.26.4", "2.1.3"},
		},
		{
			name: "BuildStringIgnored",
			spec: "numpy 2.0.1 py312_0",
			want: []string{"2.0.1"},
		},
		{
			name: "UnknownPackage",
			spec: "scipy",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := idx.Search(context.Background(), "conda-forge", tt.spec)
			require.NoError(t, err)

			got := make([]string, 0, len(records))
			for _, rec := range records {
				got = append(got, rec.Version)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
