package query

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

func values(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestParseFilterOperators(t *testing.T) {
	spec, err := Parse(values(t, "price[gte]=100&price[lt]=500.5&difficulty=easy&page=2&sort=price&limit=3&fields=name"), Defaults{})
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "difficulty", Value: "easy"},
		{Key: "price", Value: bson.D{{Key: "$gte", Value: int64(100)}, {Key: "$lt", Value: 500.5}}},
	}, spec.Filter)
}

func TestParseRejectsUnsupportedKeys(t *testing.T) {
	for _, raw := range []string{"price[ne]=1", "$where=1", "price[$gt]=1", "fields=name,-price"} {
		_, err := Parse(values(t, raw), Defaults{})
		assert.ErrorIs(t, err, apperror.ErrValidationFailed, raw)
	}
}

func TestParseRejectsHiddenFields(t *testing.T) {
	d := Defaults{Hidden: []string{"password", "passwordResetToken"}}
	for _, raw := range []string{
		"password[gte]=$2a$04$",
		"password=x",
		"passwordResetToken[lt]=f",
		"password.sub=1",
		"sort=password",
		"sort=name,-passwordResetToken",
	} {
		_, err := Parse(values(t, raw), d)
		require.ErrorIs(t, err, apperror.ErrValidationFailed, raw)
	}

	_, err := Parse(values(t, "passwordConfirmHint=1&sort=passwordless"), d)
	assert.NoError(t, err, "only exact names and their subfields are hidden")
}

func TestParseDefaults(t *testing.T) {
	spec, err := Parse(url.Values{}, Defaults{Hidden: []string{"password"}})
	require.NoError(t, err)

	assert.Empty(t, spec.Filter)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, spec.Sort)
	assert.Equal(t, bson.D{{Key: "password", Value: 0}}, spec.Projection)
	assert.EqualValues(t, 1, spec.Page)
	assert.EqualValues(t, DefaultLimit, spec.Limit)
	assert.False(t, spec.PageGiven)
	assert.Zero(t, spec.Skip())
}

func TestParseSortAndFields(t *testing.T) {
	spec, err := Parse(values(t, "sort=-ratingsAverage, price&fields=name,price,password"), Defaults{Hidden: []string{"password"}})
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "ratingsAverage", Value: -1}, {Key: "price", Value: 1}, {Key: "_id", Value: 1}}, spec.Sort)
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}}, spec.Projection)

	spec, err = Parse(values(t, "fields=-summary"), Defaults{Hidden: []string{"password"}})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "password", Value: 0}, {Key: "summary", Value: 0}}, spec.Projection)
}

func TestCoerce(t *testing.T) {
	id := bson.NewObjectID()
	assert.Equal(t, int64(5), Coerce("5"))
	assert.Equal(t, 4.5, Coerce("4.5"))
	assert.Equal(t, true, Coerce("true"))
	assert.Equal(t, id, Coerce(id.Hex()))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Coerce("2026-03-01"))
	assert.Equal(t, "easy", Coerce("easy"))
}

func seed(t *testing.T, n int) *repository.MemoryCollection[model.Tour] {
	t.Helper()
	col := repository.NewMemoryCollection[model.Tour]("name")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, col.Insert(context.Background(), &model.Tour{
			ID:         bson.NewObjectID(),
			Name:       fmt.Sprintf("The Tour %02d", i),
			Price:      float64(50 * (i%4 + 1)),
			SecretTour: i == n-1,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return col
}

var visible = bson.D{{Key: "secretTour", Value: bson.D{{Key: "$ne", Value: true}}}}

func TestBuilderFilterComparison(t *testing.T) {
	col := seed(t, 9)
	got, err := New[model.Tour](col, visible, values(t, "price[gte]=100"), Defaults{}).All().Exec(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, tour := range got {
		assert.GreaterOrEqual(t, tour.Price, 100.0)
		assert.False(t, tour.SecretTour)
	}
}

func TestBuilderSortDescending(t *testing.T) {
	col := seed(t, 9)
	got, err := New[model.Tour](col, visible, values(t, "sort=-price"), Defaults{}).All().Exec(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 8)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].Price, got[i-1].Price)
	}
}

func TestBuilderPagesPartitionResults(t *testing.T) {
	ctx := context.Background()
	col := seed(t, 6)
	all, err := New[model.Tour](col, visible, values(t, "sort=price"), Defaults{}).All().Exec(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)

	var paged []*model.Tour
	for page := 1; page <= 3; page++ {
		got, err := New[model.Tour](col, visible, values(t, fmt.Sprintf("sort=price&page=%d&limit=2", page)), Defaults{}).All().Exec(ctx)
		require.NoError(t, err)
		paged = append(paged, got...)
	}
	require.Len(t, paged, len(all))
	for i := range all {
		assert.Equal(t, all[i].ID, paged[i].ID)
	}

	_, err = New[model.Tour](col, visible, values(t, "page=4&limit=2"), Defaults{}).All().Exec(ctx)
	assert.ErrorIs(t, err, apperror.ErrPageOutOfRange)
}

func TestBuilderEmptyFirstPage(t *testing.T) {
	col := repository.NewMemoryCollection[model.Tour]()
	got, err := New[model.Tour](col, nil, values(t, "page=1"), Defaults{}).All().Exec(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuilderBaseFilterWins(t *testing.T) {
	col := seed(t, 3)
	got, err := New[model.Tour](col, visible, values(t, "secretTour=true"), Defaults{}).All().Exec(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := New[model.Tour](col, visible, nil, Defaults{}).Filter().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestBuilderDefersErrorsToExec(t *testing.T) {
	col := seed(t, 1)
	b := New[model.Tour](col, nil, values(t, "limit=zero"), Defaults{}).Filter().Paginate()
	_, err := b.Exec(context.Background())
	assert.ErrorIs(t, err, apperror.ErrValidationFailed)
}
