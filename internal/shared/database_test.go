package shared

import "testing"

func TestDatabase(t *testing.T) {
	t.Run("Rebind", func(t *testing.T) {
		tc := []struct {
			name   string
			driver string
			query  string
			want   string
		}{
			{"sqlite untouched", DriverSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
			{"postgres numbered", DriverPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
			{"postgres no args", DriverPostgres, "SELECT 1", "SELECT 1"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				db := &Database{driver: tt.driver}
				if got := db.Rebind(tt.query); got != tt.want {
					t.Errorf("Rebind() = %q, want %q", got, tt.want)
				}
			})
		}
	})

	t.Run("NewDatabase rejects unknown driver", func(t *testing.T) {
		if _, err := NewDatabase("mysql", "root@/db"); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})

	t.Run("NewMemoryDatabase", func(t *testing.T) {
		db, err := NewMemoryDatabase()
		if err != nil {
			t.Fatalf("failed to open memory database: %v", err)
		}
		defer db.Close()

		if db.Driver() != DriverSQLite {
			t.Errorf("expected sqlite3 driver, got %s", db.Driver())
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM administrators").Scan(&n); err != nil {
			t.Errorf("expected migrated schema: %v", err)
		}
	})
}
