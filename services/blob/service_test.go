package blob

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/azure-ai-gateway/config"
	"github.com/upb/azure-ai-gateway/services"
	"go.uber.org/zap"
)

// devstoreaccount1 well-known Azurite key, safe to embed in tests
const azuriteKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(config.StorageConfig{
		AccountName: "devstoreaccount1",
		AccountKey:  azuriteKey,
		Container:   "documents",
	}, nil, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestBlobURL(t *testing.T) {
	svc := newTestService(t)

	assert.Equal(t,
		"https://devstoreaccount1.blob.core.windows.net/documents/notes.txt",
		svc.BlobURL("notes.txt"))

	// names with spaces and slashes are escaped
	assert.Equal(t,
		"https://devstoreaccount1.blob.core.windows.net/documents/interview%20notes.md",
		svc.BlobURL("interview notes.md"))
}

func TestGenerateSAS(t *testing.T) {
	t.Run("produces signed read-only url", func(t *testing.T) {
		svc := newTestService(t)

		info, err := svc.GenerateSAS("notes.txt", 30*time.Minute)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(info.URL,
			"https://devstoreaccount1.blob.core.windows.net/documents/notes.txt?"))
		assert.Contains(t, info.URL, "sig=")
		assert.Contains(t, info.URL, "sp=r")
		assert.WithinDuration(t, time.Now().UTC().Add(30*time.Minute), info.ExpiresAt, 5*time.Second)
	})

	t.Run("defaults expiry to one hour", func(t *testing.T) {
		svc := newTestService(t)

		info, err := svc.GenerateSAS("notes.txt", 0)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), info.ExpiresAt, 5*time.Second)
	})

	t.Run("unavailable without shared key", func(t *testing.T) {
		svc := &Service{container: "documents", serviceURL: "https://devstoreaccount1.blob.core.windows.net"}

		_, err := svc.GenerateSAS("notes.txt", time.Hour)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestCountingReader(t *testing.T) {
	r := &countingReader{inner: strings.NewReader("hello world")}
	buf := make([]byte, 4)
	for {
		if _, err := r.Read(buf); err != nil {
			break
		}
	}
	assert.Equal(t, int64(11), r.n)
}
