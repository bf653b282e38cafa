package database

// Table is implemented by persisted models; the name is the SQL table and
// the Mongo collection alike.
type Table interface {
	GetTableName() string
}
