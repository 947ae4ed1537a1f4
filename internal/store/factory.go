package store

import (
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"triage/internal/constants"
)

// New picks the backend named by storeType. The unused handle may be nil.
func New(storeType string, db *sql.DB, mongoDB *mongo.Database) (Store, error) {
	switch storeType {
	case constants.StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case constants.StoreTypePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres store requires a database connection")
		}
		return NewPostgresStore(db), nil
	case constants.StoreTypeMongoDB:
		if mongoDB == nil {
			return nil, fmt.Errorf("mongodb store requires a database")
		}
		return NewMongoStore(mongoDB), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}
}
