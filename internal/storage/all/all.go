// Package all registers every measurement store backend. Binaries blank
// import this package once instead of tracking backend packages themselves.
package all

import (
	_ "cellpipe/internal/storage/mssql"
	_ "cellpipe/internal/storage/postgres"
	_ "cellpipe/internal/storage/sqlite"
)
