// Package smkmongo provides a MongoDB adapter for the smklog persistence layer
package smkmongo

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lemmego/smklog"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements smklog.Provider using MongoDB
type Provider struct {
	client    *mongo.Client
	database  *Database
	sequences *Sequences
	config    smklog.Config
}

// Factory implements smklog.ProviderFactory
type Factory struct{}

// Create creates a new MongoDB provider instance
func (f *Factory) Create(config smklog.Config) (smklog.Provider, error) {
	return New(config)
}

// New connects a MongoDB provider. It is Factory.Create with a concrete return type.
func New(config smklog.Config) (*Provider, error) {
	provider := &Provider{config: config}

	// Create client options
	clientOpts := options.Client().ApplyURI(buildConnectionURI(config))
	transactions := true
	if mongoOpts := config.AdapterOptions("mongo"); mongoOpts != nil {
		applyClientOptions(clientOpts, mongoOpts)
		if enabled, ok := mongoOpts["transactions"].(bool); ok {
			transactions = enabled
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "failed to connect to MongoDB",
			Cause:   err,
		}
	}

	// Test the connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "failed to ping MongoDB",
			Cause:   err,
		}
	}

	db := client.Database(config.Database)
	provider.client = client
	provider.database = &Database{client: client, db: db, transactions: transactions}
	provider.sequences = &Sequences{collection: db.Collection(smklog.SequenceTable)}
	return provider, nil
}

// SupportedDrivers returns the list of supported database drivers
func (f *Factory) SupportedDrivers() []string {
	return []string{"mongodb", "mongo"}
}

// buildConnectionURI builds MongoDB connection URI
func buildConnectionURI(config smklog.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	uri := "mongodb://"

	// Add credentials if provided
	if config.Username != "" {
		uri += config.Username
		if config.Password != "" {
			uri += ":" + config.Password
		}
		uri += "@"
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}
	uri += fmt.Sprintf("%s:%d", host, port)

	if config.Database != "" {
		uri += "/" + config.Database
	}

	if config.SSL.Enabled {
		uri += "?tls=true"
		if config.SSL.CAFile != "" {
			uri += "&tlsCAFile=" + config.SSL.CAFile
		}
		if config.SSL.CertFile != "" {
			uri += "&tlsCertificateKeyFile=" + config.SSL.CertFile
		}
	}

	return uri
}

// applyClientOptions applies MongoDB-specific client options
func applyClientOptions(clientOpts *options.ClientOptions, mongoOpts map[string]interface{}) {
	if maxPoolSize, ok := mongoOpts["max_pool_size"].(int); ok {
		clientOpts.SetMaxPoolSize(uint64(maxPoolSize))
	}
	if minPoolSize, ok := mongoOpts["min_pool_size"].(int); ok {
		clientOpts.SetMinPoolSize(uint64(minPoolSize))
	}
	if maxIdleTime, ok := mongoOpts["max_idle_time"].(time.Duration); ok {
		clientOpts.SetMaxConnIdleTime(maxIdleTime)
	}
}

// Database returns the shared database handle
func (p *Provider) Database() smklog.Database {
	return p.database
}

// SchemaProbe returns a probe restricted to allow. Documents are schemaless,
// so every field of an allowed collection exists.
func (p *Provider) SchemaProbe(allow *smklog.TableAllowList) smklog.SchemaProbe {
	return &SchemaProbe{allow: allow}
}

// Sequences returns the counters-collection generator
func (p *Provider) Sequences() smklog.SequenceGenerator {
	return p.sequences
}

// CreateSchema creates the collections of models that do not exist yet
func (p *Provider) CreateSchema(ctx context.Context, models ...interface{}) error {
	existing, err := p.database.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return convertMongoError(err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}
	for _, model := range models {
		name, err := collectionName(model)
		if err != nil {
			return err
		}
		if have[name] {
			continue
		}
		if err := p.database.db.CreateCollection(ctx, name); err != nil {
			return smklog.Migration("failed to create collection "+name, convertMongoError(err))
		}
		have[name] = true
	}
	return nil
}

// Health checks the database connection health
func (p *Provider) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return convertMongoError(p.client.Ping(ctx, readpref.Primary()))
}

// Close closes the database connection
func (p *Provider) Close() error {
	return p.database.Close()
}

// SupportedFeatures returns the list of supported features
func (p *Provider) SupportedFeatures() []smklog.Feature {
	features := []smklog.Feature{
		smklog.FeatureSequences,
		smklog.FeatureJSONQueries,
	}
	if p.database.transactions {
		features = append(features, smklog.FeatureTransactions)
	}
	return features
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() smklog.ProviderInfo {
	return smklog.ProviderInfo{
		Name:         "MongoDB",
		Version:      "1.0.0",
		DatabaseType: smklog.DatabaseTypeDocument,
		Dialect:      smklog.DialectMongo,
		Features:     p.SupportedFeatures(),
	}
}

// =====================================
// Database Implementation
// =====================================

// Database implements smklog.Database over a MongoDB database. Inside a
// transaction session is set and every call is bound to it.
type Database struct {
	client       *mongo.Client
	db           *mongo.Database
	session      mongo.Session
	transactions bool
}

func (d *Database) bind(ctx context.Context) context.Context {
	if d.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, d.session)
}

func (d *Database) collection(model interface{}) (*mongo.Collection, error) {
	name, err := collectionName(model)
	if err != nil {
		return nil, err
	}
	return d.db.Collection(name), nil
}

// Insert persists a new document
func (d *Database) Insert(ctx context.Context, entity interface{}) error {
	coll, err := d.collection(entity)
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(d.bind(ctx), entity)
	return convertMongoError(err)
}

// Update replaces the document with the same _id
func (d *Database) Update(ctx context.Context, entity interface{}) error {
	coll, err := d.collection(entity)
	if err != nil {
		return err
	}
	id, err := documentID(entity)
	if err != nil {
		return err
	}
	result, err := coll.ReplaceOne(d.bind(ctx), bson.M{"_id": id}, entity)
	if err != nil {
		return convertMongoError(err)
	}
	if result.MatchedCount == 0 {
		return smklog.NotFound(coll.Name(), id)
	}
	return nil
}

// Delete removes the document with the same _id
func (d *Database) Delete(ctx context.Context, entity interface{}) error {
	coll, err := d.collection(entity)
	if err != nil {
		return err
	}
	id, err := documentID(entity)
	if err != nil {
		return err
	}
	_, err = coll.DeleteOne(d.bind(ctx), bson.M{"_id": id})
	return convertMongoError(err)
}

// FindByID loads the document with the given _id
func (d *Database) FindByID(ctx context.Context, id interface{}, dest interface{}) error {
	coll, err := d.collection(dest)
	if err != nil {
		return err
	}
	return convertMongoError(coll.FindOne(d.bind(ctx), bson.M{"_id": id}).Decode(dest))
}

// Query loads every document matching opts into dest
func (d *Database) Query(ctx context.Context, dest interface{}, opts ...smklog.QueryOption) error {
	coll, err := d.collection(dest)
	if err != nil {
		return err
	}
	filter, findOpts, err := buildQuery(opts...)
	if err != nil {
		return err
	}
	ctx = d.bind(ctx)
	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return convertMongoError(err)
	}
	defer cursor.Close(ctx)
	return convertMongoError(cursor.All(ctx, dest))
}

// Count counts the documents matching opts
func (d *Database) Count(ctx context.Context, model interface{}, opts ...smklog.QueryOption) (int64, error) {
	coll, err := d.collection(model)
	if err != nil {
		return 0, err
	}
	filter, _, err := buildQuery(opts...)
	if err != nil {
		return 0, err
	}
	count, err := coll.CountDocuments(d.bind(ctx), filter)
	if err != nil {
		return 0, convertMongoError(err)
	}
	return count, nil
}

// Exec is not available on MongoDB
func (d *Database) Exec(ctx context.Context, query string, args ...interface{}) (smklog.Result, error) {
	return nil, smklog.NewError(smklog.ErrorTypeUnsupported, "raw statements are not supported by MongoDB")
}

// Scalar is not available on MongoDB
func (d *Database) Scalar(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return smklog.NewError(smklog.ErrorTypeUnsupported, "raw statements are not supported by MongoDB")
}

// Transaction runs fn in a multi-document transaction. With transactions
// disabled fn runs directly against the database.
func (d *Database) Transaction(ctx context.Context, fn func(tx smklog.Session) error) error {
	if !d.transactions || d.session != nil {
		return fn(d)
	}

	session, err := d.client.StartSession()
	if err != nil {
		return convertMongoError(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&Database{client: d.client, db: d.db, session: session, transactions: true})
	})
	return convertMongoError(err)
}

// Dialect returns smklog.DialectMongo
func (d *Database) Dialect() smklog.Dialect {
	return smklog.DialectMongo
}

// Close disconnects the client
func (d *Database) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// =====================================
// Helpers
// =====================================

// collectionName resolves the collection of an entity, a pointer to one, or
// a pointer to a slice of them. CollectionName() wins over TableName().
func collectionName(model interface{}) (string, error) {
	t := reflect.TypeOf(model)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return "", smklog.InvalidArgument("model", fmt.Sprintf("%T is not an entity", model))
	}

	instance := reflect.New(t).Interface()
	if named, ok := instance.(interface{ CollectionName() string }); ok {
		return named.CollectionName(), nil
	}
	if named, ok := instance.(interface{ TableName() string }); ok {
		return named.TableName(), nil
	}

	name := strings.ToLower(t.Name())
	if !strings.HasSuffix(name, "s") {
		name += "s"
	}
	return name, nil
}

// documentID extracts the encoded _id of entity
func documentID(entity interface{}) (bson.RawValue, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return bson.RawValue{}, smklog.NewErrorWithCause(smklog.ErrorTypeInvalidInput, "entity cannot be encoded", err)
	}
	id, err := bson.Raw(raw).LookupErr("_id")
	if err != nil {
		return bson.RawValue{}, smklog.InvalidInput(fmt.Sprintf("%T has no _id", entity))
	}
	return id, nil
}

// =====================================
// Registration
// =====================================

// init registers the MongoDB provider factory
func init() {
	_ = smklog.RegisterProvider("mongo", &Factory{})
}
