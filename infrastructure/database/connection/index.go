package connection

import (
	"biolock.io/infrastructure/database/connection/cache"
	"biolock.io/infrastructure/database/connection/datastore"
)

func ConnectToDatabase() {
	datastore.ConnectToDatabase()
	cache.ConnectToCache()
}
