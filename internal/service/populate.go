package service

import (
	"context"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

func idsIn(ids []bson.ObjectID) bson.D {
	in := bson.A{}
	for _, id := range ids {
		in = append(in, id)
	}
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: in}}}}
}

func distinct(ids []bson.ObjectID) []bson.ObjectID {
	out := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !id.IsZero() && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// authors loads the public name and photo of the given users.
func authors(ctx context.Context, users repository.Collection[model.User], ids []bson.ObjectID) (map[bson.ObjectID]*model.Author, error) {
	out := map[bson.ObjectID]*model.Author{}
	ids = distinct(ids)
	if len(ids) == 0 {
		return out, nil
	}
	found, err := users.Find(ctx, repository.Query{
		Filter:     idsIn(ids),
		Projection: bson.D{{Key: "name", Value: 1}, {Key: "photo", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		out[u.ID] = &model.Author{Name: u.Name, Photo: u.Photo}
	}
	return out, nil
}

// tourRefs loads the names of the given tours.
func tourRefs(ctx context.Context, tours repository.Collection[model.Tour], ids []bson.ObjectID) (map[bson.ObjectID]*model.TourRef, error) {
	out := map[bson.ObjectID]*model.TourRef{}
	ids = distinct(ids)
	if len(ids) == 0 {
		return out, nil
	}
	found, err := tours.Find(ctx, repository.Query{
		Filter:     idsIn(ids),
		Projection: bson.D{{Key: "name", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	for _, t := range found {
		out[t.ID] = &model.TourRef{ID: t.ID, Name: t.Name}
	}
	return out, nil
}
