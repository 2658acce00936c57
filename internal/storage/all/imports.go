// Package all registers every built-in manifest storage backend with the
// storage factory. Import it for side effects:
//
//	import _ "csvbatch/internal/storage/all"
//
// after which storage.New accepts the kinds "postgres", "sqlite", "mssql"
// and "mysql".
package all

import (
	_ "csvbatch/internal/storage/mssql"
	_ "csvbatch/internal/storage/mysql"
	_ "csvbatch/internal/storage/postgres"
	_ "csvbatch/internal/storage/sqlite"
)
