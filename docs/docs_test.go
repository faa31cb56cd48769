package docs

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromData(OpenAPI)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, path := range []string{
		"/api/webhooks/stripe",
		"/healthz",
		"/api/admin/subscriptions/unresolved",
		"/api/admin/companies/{id}/subscription",
		"/api/admin/companies/{id}/resync",
		"/api/admin/webhook-logs",
		"/api/admin/webhook-stats",
	} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
}
