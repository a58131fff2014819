package smkmongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lemmego/smklog"
)

// =====================================
// Sequences
// =====================================

type counter struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"seq_value"`
}

// Sequences implements smklog.SequenceGenerator with one counter document
// per name, bumped atomically by $inc.
type Sequences struct {
	collection *mongo.Collection
}

// Next implements smklog.SequenceGenerator
func (s *Sequences) Next(ctx context.Context, name string) (int64, error) {
	if err := smklog.ValidateIdentifier(name); err != nil {
		return 0, err
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var c counter
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq_value": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, smklog.WithContext(convertMongoError(err), map[string]interface{}{"sequence": name})
	}
	return c.Value, nil
}

// EnsureAtLeast implements smklog.SequenceGenerator
func (s *Sequences) EnsureAtLeast(ctx context.Context, name string, floor int64) error {
	if err := smklog.ValidateIdentifier(name); err != nil {
		return err
	}
	if floor < 1 {
		return nil
	}
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$max": bson.M{"seq_value": floor}},
		options.Update().SetUpsert(true),
	)
	return convertMongoError(err)
}

// =====================================
// Schema Probe
// =====================================

// SchemaProbe implements smklog.SchemaProbe for schemaless collections.
// A missing field reads as null, so there is never anything to add.
type SchemaProbe struct {
	allow *smklog.TableAllowList
}

// ColumnExists reports true for any valid field of an allowed collection
func (p *SchemaProbe) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	if err := p.allow.Check(table, column); err != nil {
		return false, err
	}
	return true, nil
}

// AddColumnIfMissing never adds anything
func (p *SchemaProbe) AddColumnIfMissing(ctx context.Context, table, column string, columnType smklog.ColumnType) (bool, error) {
	if err := p.allow.Check(table, column); err != nil {
		return false, err
	}
	return false, nil
}
