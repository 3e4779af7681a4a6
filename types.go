package mongodeck

// ConnectionState represents the lifecycle state of a cached connection
type ConnectionState int32

const (
	// ConnectionStateOpen the underlying handle is connected and usable
	ConnectionStateOpen ConnectionState = iota
	// ConnectionStateClosed the underlying handle reported disconnection
	ConnectionStateClosed
)

// String returns the string representation of ConnectionState
func (cs ConnectionState) String() string {
	switch cs {
	case ConnectionStateOpen:
		return "Open"
	case ConnectionStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// AdminKind enumerates database-scoped administrative actions
type AdminKind int

const (
	// AdminListDatabases lists database names on the server
	AdminListDatabases AdminKind = iota
	// AdminListCollections lists collection names in the default database
	AdminListCollections
	// AdminStats runs dbStats against the default database
	AdminStats
	// AdminServerStatus runs serverStatus against the admin database
	AdminServerStatus
	// AdminDropDatabase drops the default database
	AdminDropDatabase
	// AdminCreateCollection creates a named collection
	AdminCreateCollection
	// AdminDropCollection drops a named collection
	AdminDropCollection
	// AdminRunCommand runs a raw command against the default database
	AdminRunCommand
	// AdminCommand runs a raw command against the admin database
	AdminCommand
)

// String returns the canonical shell method name of AdminKind
func (ak AdminKind) String() string {
	switch ak {
	case AdminListDatabases:
		return "listDatabases"
	case AdminListCollections:
		return "listCollections"
	case AdminStats:
		return "stats"
	case AdminServerStatus:
		return "serverStatus"
	case AdminDropDatabase:
		return "dropDatabase"
	case AdminCreateCollection:
		return "createCollection"
	case AdminDropCollection:
		return "dropCollection"
	case AdminRunCommand:
		return "runCommand"
	case AdminCommand:
		return "adminCommand"
	default:
		return "unknown"
	}
}

// CollectionKind enumerates collection-scoped actions
type CollectionKind int

const (
	// CollectionFind bounded read returning an array of documents
	CollectionFind CollectionKind = iota
	// CollectionFindOne single-document read
	CollectionFindOne
	// CollectionCount scalar document count
	CollectionCount
	// CollectionAggregate aggregation pipeline run
	CollectionAggregate
	// CollectionCreateIndex index creation from a key specification
	CollectionCreateIndex
	// CollectionDrop collection drop
	CollectionDrop
)

// String returns the canonical shell method name of CollectionKind
func (ck CollectionKind) String() string {
	switch ck {
	case CollectionFind:
		return "find"
	case CollectionFindOne:
		return "findOne"
	case CollectionCount:
		return "countDocuments"
	case CollectionAggregate:
		return "aggregate"
	case CollectionCreateIndex:
		return "createIndex"
	case CollectionDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// ExecutionResult represents the uniform envelope produced for every
// dispatched command. Execution never propagates an error past this
// envelope: failures are captured in Error with Success set to false.
type ExecutionResult struct {
	Success    bool        `json:"success"`
	Payload    interface{} `json:"payload,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// QueryOptions carries the pass-through read options of the document
// endpoints: filter, sort, projection, skip and limit
type QueryOptions struct {
	Filter     map[string]interface{} `json:"filter,omitempty"`
	Sort       map[string]interface{} `json:"sort,omitempty"`
	Projection map[string]interface{} `json:"projection,omitempty"`
	Skip       int64                  `json:"skip,omitempty"`
	Limit      int64                  `json:"limit,omitempty"`
}
