package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create deliveries",
		SQL: `
			CREATE TABLE deliveries (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				kind        TEXT NOT NULL,
				receiver    TEXT NOT NULL,
				outcome     TEXT NOT NULL,
				failure     TEXT NOT NULL DEFAULT 'none',
				segments    INTEGER NOT NULL DEFAULT 0,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				error       TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			);

			CREATE INDEX idx_deliveries_created ON deliveries (created_at);
		`,
	},
	{
		Version: 2,
		Name:    "index deliveries by receiver",
		SQL: `
			CREATE INDEX idx_deliveries_receiver ON deliveries (receiver, id);
		`,
	},
}
