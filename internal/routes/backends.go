package routes

import (
	"fmt"

	"github.com/courtchamps/courtchamps/internal/config"
	"github.com/courtchamps/courtchamps/internal/deletion"
	"github.com/courtchamps/courtchamps/internal/identity"
	"github.com/courtchamps/courtchamps/internal/profile"
)

// Backends are the stores selected by configuration.
type Backends struct {
	Directory identity.Repository
	Profiles  profile.Repository
	Tokens    deletion.TokenStore
	Cleanups  deletion.CleanupQueue
}

// NewBackends builds the stores named by d.Cfg over the connections in d.
func NewBackends(d Deps) (Backends, error) {
	var b Backends

	switch d.Cfg.DirectoryStore {
	case config.BackendPostgres:
		if d.DB == nil {
			return b, fmt.Errorf("directory store %q needs a database", d.Cfg.DirectoryStore)
		}
		b.Directory = identity.NewPostgresRepository(d.DB)
	case config.BackendMemory:
		b.Directory = identity.NewMemoryRepository()
	default:
		return b, fmt.Errorf("unknown directory store %q", d.Cfg.DirectoryStore)
	}

	switch d.Cfg.ProfileStore {
	case config.BackendPostgres:
		if d.DB == nil {
			return b, fmt.Errorf("profile store %q needs a database", d.Cfg.ProfileStore)
		}
		b.Profiles = profile.NewPostgresRepository(d.DB)
	case config.BackendMongo:
		if d.Mongo == nil {
			return b, fmt.Errorf("profile store %q needs a mongo client", d.Cfg.ProfileStore)
		}
		coll := d.Mongo.Database(d.Cfg.MongoDatabase).Collection(d.Cfg.MongoProfileCollection)
		b.Profiles = profile.NewMongoRepository(coll)
	case config.BackendMemory:
		b.Profiles = profile.NewMemoryRepository(profile.ByAccountID)
	default:
		return b, fmt.Errorf("unknown profile store %q", d.Cfg.ProfileStore)
	}

	switch d.Cfg.TokenStore {
	case config.BackendRedis:
		if d.Cache == nil {
			return b, fmt.Errorf("token store %q needs a redis client", d.Cfg.TokenStore)
		}
		b.Tokens = deletion.NewRedisStore(d.Cache)
	case config.BackendPostgres:
		if d.DB == nil {
			return b, fmt.Errorf("token store %q needs a database", d.Cfg.TokenStore)
		}
		b.Tokens = deletion.NewPostgresStore(d.DB)
	case config.BackendMemory:
		b.Tokens = deletion.NewMemoryStore()
	default:
		return b, fmt.Errorf("unknown token store %q", d.Cfg.TokenStore)
	}

	if d.DB != nil {
		b.Cleanups = deletion.NewPostgresCleanupQueue(d.DB)
	} else {
		b.Cleanups = deletion.NewMemoryCleanupQueue()
	}
	return b, nil
}
