package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/weather/types"
)

type readingDocument struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	DeviceName          string             `bson:"deviceName"`
	Precipitation       float64            `bson:"precipitation"`
	AtmosphericPressure float64            `bson:"atmosphericPressure"`
	Latitude            float64            `bson:"latitude"`
	Longitude           float64            `bson:"longitude"`
	Temperature         float64            `bson:"temperature"`
	Time                time.Time          `bson:"time"`
	Humidity            float64            `bson:"humidity"`
	MaxWindSpeed        float64            `bson:"maxWindSpeed"`
	SolarRadiation      float64            `bson:"solarRadiation"`
	VaporPressure       float64            `bson:"vaporPressure"`
	WindDirection       float64            `bson:"windDirection"`
}

func toDocument(r types.Reading) readingDocument {
	return readingDocument{
		ID:                  primitive.NewObjectID(),
		DeviceName:          r.DeviceName,
		Precipitation:       r.Precipitation,
		AtmosphericPressure: r.AtmosphericPressure,
		Latitude:            r.Latitude,
		Longitude:           r.Longitude,
		Temperature:         r.Temperature,
		Time:                r.Time,
		Humidity:            r.Humidity,
		MaxWindSpeed:        r.MaxWindSpeed,
		SolarRadiation:      r.SolarRadiation,
		VaporPressure:       r.VaporPressure,
		WindDirection:       r.WindDirection,
	}
}

func (d readingDocument) reading() types.Reading {
	return types.Reading{
		ID:                  d.ID.Hex(),
		DeviceName:          d.DeviceName,
		Precipitation:       d.Precipitation,
		AtmosphericPressure: d.AtmosphericPressure,
		Latitude:            d.Latitude,
		Longitude:           d.Longitude,
		Temperature:         d.Temperature,
		Time:                d.Time.UTC(),
		Humidity:            d.Humidity,
		MaxWindSpeed:        d.MaxWindSpeed,
		SolarRadiation:      d.SolarRadiation,
		VaporPressure:       d.VaporPressure,
		WindDirection:       d.WindDirection,
	}
}

type mongoRepository struct {
	readings *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) ReadingRepository {
	return &mongoRepository{readings: database.Collection(db.ReadingsCollection)}
}

func (r *mongoRepository) InsertMany(ctx context.Context, readings []types.Reading) ([]types.Reading, error) {
	docs := make([]any, 0, len(readings))
	out := make([]types.Reading, 0, len(readings))
	for _, rd := range readings {
		doc := toDocument(rd)
		docs = append(docs, doc)
		rd.ID = doc.ID.Hex()
		out = append(out, rd)
	}
	if _, err := r.readings.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return nil, fmt.Errorf("insert readings: %w", db.MongoErr(err))
	}
	return out, nil
}

func (r *mongoRepository) DeviceExists(ctx context.Context, deviceName string) (bool, error) {
	n, err := r.readings.CountDocuments(ctx, bson.M{"deviceName": deviceName}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("device exists %q: %w", deviceName, err)
	}
	return n > 0, nil
}

func (r *mongoRepository) MaxPrecipitationSince(ctx context.Context, deviceName string, since time.Time) (types.MaxPrecipitation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"deviceName": deviceName, "time": bson.M{"$gte": since}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":              "$deviceName",
			"maxPrecipitation": bson.M{"$max": "$precipitation"},
			"time":             bson.M{"$last": "$time"},
		}}},
	}
	var rows []struct {
		MaxPrecipitation float64   `bson:"maxPrecipitation"`
		Time             time.Time `bson:"time"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return types.MaxPrecipitation{}, fmt.Errorf("max precipitation %q: %w", deviceName, err)
	}
	if len(rows) == 0 {
		return types.MaxPrecipitation{}, fmt.Errorf("max precipitation %q: %w", deviceName, db.ErrNotFound)
	}
	return types.MaxPrecipitation{
		DeviceName:       deviceName,
		MaxPrecipitation: rows[0].MaxPrecipitation,
		Time:             rows[0].Time.UTC(),
	}, nil
}

func (r *mongoRepository) FindAt(ctx context.Context, deviceName string, at time.Time) (types.ReadingSnapshot, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"deviceName": deviceName, "time": bson.M{"$eq": at}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: 1}},
	}
	var rows []readingDocument
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return types.ReadingSnapshot{}, fmt.Errorf("reading %q at %s: %w", deviceName, at, err)
	}
	if len(rows) == 0 {
		return types.ReadingSnapshot{}, fmt.Errorf("reading %q at %s: %w", deviceName, at, db.ErrNotFound)
	}
	d := rows[0]
	return types.ReadingSnapshot{
		Temperature:         d.Temperature,
		AtmosphericPressure: d.AtmosphericPressure,
		SolarRadiation:      d.SolarRadiation,
		Precipitation:       d.Precipitation,
	}, nil
}

func (r *mongoRepository) MaxTemperatureBetween(ctx context.Context, tr db.TimeRange) (types.MaxTemperature, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"time": bson.M{"$gte": tr.Start, "$lt": tr.End}}}},
		{{Key: "$sort", Value: bson.D{{Key: "temperature", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$project", Value: bson.M{"deviceName": 1, "maxTemperature": "$temperature"}}},
	}
	var rows []struct {
		DeviceName     string  `bson:"deviceName"`
		MaxTemperature float64 `bson:"maxTemperature"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return types.MaxTemperature{}, fmt.Errorf("max temperature: %w", err)
	}
	if len(rows) == 0 {
		return types.MaxTemperature{}, fmt.Errorf("max temperature: %w", db.ErrNotFound)
	}
	return types.MaxTemperature{DeviceName: rows[0].DeviceName, MaxTemperature: rows[0].MaxTemperature}, nil
}

func (r *mongoRepository) FindIDs(ctx context.Context, deviceName string, tr db.TimeRange) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"deviceName": deviceName, "time": bson.M{"$gte": tr.Start, "$lt": tr.End}}}},
		{{Key: "$project", Value: bson.M{"_id": 1}}},
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("select reading ids: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID.Hex())
	}
	return ids, nil
}

func (r *mongoRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := db.ObjectIDFromHex(id)
		if err != nil {
			return 0, err
		}
		oids = append(oids, oid)
	}
	res, err := r.readings.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("delete readings: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *mongoRepository) UpdatePrecipitation(ctx context.Context, id string, precipitation float64) (types.Reading, error) {
	oid, err := db.ObjectIDFromHex(id)
	if err != nil {
		return types.Reading{}, err
	}
	var doc readingDocument
	err = r.readings.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"precipitation": precipitation}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return types.Reading{}, fmt.Errorf("update precipitation %s: %w", id, db.MongoErr(err))
	}
	return doc.reading(), nil
}

func (r *mongoRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := r.readings.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
