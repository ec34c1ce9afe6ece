package runstore

import "database/sql"

func (s *Store) RawExecForTest(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(query, args...)
}
