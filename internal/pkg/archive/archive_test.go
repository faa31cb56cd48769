package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/comanda/internal/pkg/config"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	assert.Equal(t, "webhooks/2026/03/08/evt_1.json", ObjectKey("webhooks", "evt_1", at))
	assert.Equal(t, "2026/03/08/evt_1.json", ObjectKey("", "evt_1", at))
	assert.Contains(t, ObjectKey("webhooks", "", at), "webhooks/2026/03/08/unknown-")
}

func TestNewDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()

	a, err := New(context.Background(), config.Archive{Enabled: false}, logrus.NewEntry(logger))
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestStoreUploadsPayload(t *testing.T) {
	var mu sync.Mutex
	var putPath, putBody, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			putPath, putBody, contentType = r.URL.Path, string(body), r.Header.Get("Content-Type")
			mu.Unlock()
			w.Header().Set("ETag", `"abc"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	a, err := New(context.Background(), config.Archive{
		Enabled:         true,
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		Region:          "us-east-1",
		BucketName:      "billing-archive",
		EndpointURL:     srv.URL,
		Prefix:          "/webhooks/",
	}, logrus.NewEntry(logger))
	require.NoError(t, err)
	require.NotNil(t, a)

	payload := []byte(`{"id":"evt_1"}`)
	require.NoError(t, a.Store(context.Background(), "evt_1", payload, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/billing-archive/webhooks/2026/01/02/evt_1.json", putPath)
	assert.Equal(t, string(payload), putBody)
	assert.Equal(t, "application/json", contentType)
}
