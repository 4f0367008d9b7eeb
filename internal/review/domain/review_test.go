package domain

import (
	"strings"
	"testing"

	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReview_RatingBounds(t *testing.T) {
	for _, rating := range []int{0, 6, -1} {
		_, err := NewReview("l1", "u1", "Sam", rating, "Great spot overall")
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
		assert.Equal(t, "rating", apperror.FieldOf(err))
	}
	for _, rating := range []int{1, 5} {
		r, err := NewReview("l1", "u1", "Sam", rating, "Great spot overall")
		require.NoError(t, err)
		assert.Equal(t, rating, r.Rating)
	}
}

func TestNewReview_TextBounds(t *testing.T) {
	_, err := NewReview("l1", "u1", "S", 3, "Great spot overall")
	assert.Equal(t, "author", apperror.FieldOf(err))

	_, err = NewReview("l1", "u1", "Sam", 3, "meh ")
	assert.Equal(t, "body", apperror.FieldOf(err))

	_, err = NewReview("l1", "u1", "Sam", 3, strings.Repeat("b", 501))
	assert.Equal(t, "body", apperror.FieldOf(err))

	r, err := NewReview("l1", "u1", "  Sam  ", 3, "  Nice and quiet  ")
	require.NoError(t, err)
	assert.Equal(t, "Sam", r.Author)
	assert.Equal(t, "Nice and quiet", r.Body)
}
