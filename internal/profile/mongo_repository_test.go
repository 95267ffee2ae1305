package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestDeleteFirstMatchOptionsIgnoreCase(t *testing.T) {
	args := &options.FindOneAndDeleteOptions{}
	for _, set := range deleteFirstMatchOptions().List() {
		require.NoError(t, set(args))
	}

	require.NotNil(t, args.Collation)
	assert.Equal(t, "en", args.Collation.Locale)
	assert.Equal(t, 2, args.Collation.Strength)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, args.Sort)
}

func TestEmailFilterTrimsAddress(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "email", Value: "Mixed.Case@Example.com"}}, emailFilter(" Mixed.Case@Example.com "))
}
