package mongo

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"bookhaven.ca/bookstore/api/pkg/models"
)

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(mongo.ErrNoDocuments), models.ErrNotFound)
	other := errors.New("socket closed")
	assert.Equal(t, other, notFound(other))
}

func TestContainsInsensitive_EscapesInput(t *testing.T) {
	rx := containsInsensitive("c++ (2nd ed.)")
	assert.Equal(t, "i", rx.Options)

	re := regexp.MustCompile("(?i)" + rx.Pattern)
	assert.True(t, re.MatchString("Learning C++ (2nd Ed.) Today"))
	assert.False(t, re.MatchString("Learning Cxx 2nd Ed"))
}

func TestRequiredIndexes(t *testing.T) {
	names := make(map[string]bool)
	var emailUnique bool
	for _, idx := range requiredIndexes {
		require.NotNil(t, idx.IndexModel.Options)
		var o options.IndexOptions
		for _, set := range idx.IndexModel.Options.List() {
			require.NoError(t, set(&o))
		}
		require.NotNil(t, o.Name)
		assert.False(t, names[*o.Name], "duplicate index name %s", *o.Name)
		names[*o.Name] = true
		if idx.CollectionName == usersCollection && o.Unique != nil && *o.Unique {
			emailUnique = true
		}
	}
	assert.True(t, emailUnique)
}

func TestStatusUpdate_KeepsFirstTimelineStamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	pipe := statusUpdate(models.StatusShipped, now)
	require.Len(t, pipe, 1)
	require.Equal(t, "$set", pipe[0][0].Key)
	set, ok := pipe[0][0].Value.(bson.D)
	require.True(t, ok)

	fields := map[string]any{}
	for _, e := range set {
		fields[e.Key] = e.Value
	}
	assert.Equal(t, models.StatusShipped, fields["status"])
	assert.Equal(t, now, fields["updated_at"])
	assert.Equal(t, bson.D{{Key: "$ifNull", Value: bson.A{"$timeline.shipped_at", now}}}, fields["timeline.shipped_at"])

	pending := statusUpdate(models.StatusPending, now)[0][0].Value.(bson.D)
	assert.Len(t, pending, 2, "pending has no timeline field")
}
