package blob

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
)

// mockRoundTripper is a tiny fake S3 subset: Get, Put and ListObjectsV2 on a path-style bucket.
type mockRoundTripper struct {
	mu    sync.Mutex
	state map[string][]byte
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.state {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(m.state[k]))
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, []byte(b.String())), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeChunked(body)
		}
		m.state[key] = body
		return respond(http.StatusOK, nil), nil
	case http.MethodGet:
		if body, ok := m.state[key]; ok {
			return respond(http.StatusOK, body), nil
		}
		return respond(http.StatusNotFound, nil), nil
	}
	return respond(http.StatusNotImplemented, nil), nil
}

func respond(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        http.Header{"Content-Length": {strconv.Itoa(len(body))}},
	}
}

// decodeChunked strips aws-chunked framing: <hex size>\r\n<data>\r\n ... 0\r\n<trailers>.
func decodeChunked(b []byte) []byte {
	r := bufio.NewReader(bytes.NewReader(b))
	var out []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return out
		}
		size, err := strconv.ParseInt(strings.TrimSpace(strings.SplitN(line, ";", 2)[0]), 16, 64)
		if err != nil || size == 0 {
			return out
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return out
		}
		out = append(out, chunk...)
		_, _ = r.ReadString('\n')
	}
}

func newMockStore(t *testing.T, bucket string) (*S3Store, *mockRoundTripper) {
	t.Helper()
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.RetryMaxAttempts = 1
	})
	return NewS3WithClient(client, bucket), rt
}

func TestParse(t *testing.T) {
	loc, err := Parse("s3://books/exports/q1.xlsx")
	require.NoError(t, err)
	assert.Equal(t, Location{Driver: DriverS3, Bucket: "books", Key: "exports/q1.xlsx"}, loc)

	loc, err = Parse("out/q1.xlsx")
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, loc.Driver)
	assert.Equal(t, "out/q1.xlsx", loc.Key)

	_, err = Parse("s3:///key")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfiguration))
}

func TestFSStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store := FSStore{}

	key := filepath.Join(dir, "nested", "a.json")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("[1]")))
	require.NoError(t, store.Put(ctx, filepath.Join(dir, "nested", "b.json"), strings.NewReader("[2]")))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "[1]", string(data))

	keys, err := store.List(ctx, filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Equal(t, []string{key, filepath.Join(dir, "nested", "b.json")}, keys)

	_, err = store.Get(ctx, filepath.Join(dir, "missing.json"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockStore(t, "books")

	require.NoError(t, store.Put(ctx, "q1/Orders.json", strings.NewReader(`[{"id":1}]`)))
	require.NoError(t, store.Put(ctx, "q1/Customers.json", strings.NewReader(`[]`)))
	require.NoError(t, store.Put(ctx, "q1/archive/old.json", strings.NewReader(`[]`)))
	assert.Equal(t, []byte(`[{"id":1}]`), rt.state["q1/Orders.json"])

	rc, err := store.Get(ctx, "q1/Orders.json")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, `[{"id":1}]`, string(data))

	keys, err := store.List(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1/Customers.json", "q1/Orders.json"}, keys)

	_, err = store.Get(ctx, "q1/none.json")
	assert.Error(t, err)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockStore(t, "books")
	r := NewResolver(S3Config{}).WithS3Store(store)

	require.NoError(t, r.Write(ctx, "s3://books/a.csv", strings.NewReader("id\n1\n")))
	rc, err := r.Open(ctx, "s3://books/a.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "id\n1\n", string(data))

	s, key, err := r.Resolve(ctx, "local.csv")
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())
	assert.Equal(t, "local.csv", key)
}
