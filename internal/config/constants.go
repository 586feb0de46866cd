package config

// EnvPrefix prefixes every environment variable read by the config.
const EnvPrefix = "ISBNDB"

// Defaults of the harvest run.
const (
	DefaultQuery     = "Manning"
	DefaultIndex     = "publisher_name"
	DefaultFirstPage = 1
	DefaultLastPage  = 20
	DefaultStoreFile = "books.json"
	DefaultUserAgent = "isbndb-books/0.1.0"
	DefaultStatsTop  = 10
)
