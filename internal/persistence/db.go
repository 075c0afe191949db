// Package persistence stores campaign snapshots in SQLite.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/warfront/internal/engine"
	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// ErrNoState is returned by Load when nothing has been saved yet.
var ErrNoState = errors.New("no saved campaign")

// DB wraps a SQLite connection for campaign persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		kind INTEGER NOT NULL,
		team INTEGER NOT NULL,
		role INTEGER NOT NULL,
		level INTEGER NOT NULL,
		gear_tier INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		home_site_id INTEGER,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sites (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		owner INTEGER NOT NULL,
		epoch INTEGER NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS factions (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		gold INTEGER NOT NULL,
		tier INTEGER NOT NULL,
		points REAL NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS player_group (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		elapsed REAL NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_units_site ON units(home_site_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type dataRow struct {
	Data string `db:"data_json"`
}

type eventRow struct {
	ID          string  `db:"id"`
	Tick        uint64  `db:"tick"`
	Elapsed     float64 `db:"elapsed"`
	Description string  `db:"description"`
	Category    string  `db:"category"`
	Meta        string  `db:"meta_json"`
}

func (r eventRow) event() (engine.Event, error) {
	e := engine.Event{
		ID:          r.ID,
		Tick:        r.Tick,
		Elapsed:     r.Elapsed,
		Description: r.Description,
		Category:    r.Category,
	}
	if r.Meta != "" && r.Meta != "null" {
		if err := json.Unmarshal([]byte(r.Meta), &e.Meta); err != nil {
			return e, fmt.Errorf("event %s meta: %w", r.ID, err)
		}
	}
	return e, nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Save writes a snapshot, replacing whatever was stored before, in a single
// transaction.
func (db *DB) Save(snap *engine.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"units", "sites", "factions", "player_group", "events"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := saveUnits(tx, snap.Units); err != nil {
		return fmt.Errorf("save units: %w", err)
	}
	if err := saveSites(tx, snap.Sites); err != nil {
		return fmt.Errorf("save sites: %w", err)
	}
	if err := saveFactions(tx, snap.Factions); err != nil {
		return fmt.Errorf("save factions: %w", err)
	}
	if snap.Group != nil {
		data, err := toJSON(snap.Group)
		if err != nil {
			return fmt.Errorf("encode group: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO player_group (id, data_json) VALUES (1, ?)", data); err != nil {
			return fmt.Errorf("save group: %w", err)
		}
	}
	if err := saveEvents(tx, snap.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	stats, err := toJSON(snap.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	meta := map[string]string{
		"version":     strconv.Itoa(snap.Version),
		"campaign_id": snap.CampaignID,
		"tick":        strconv.FormatUint(snap.Tick, 10),
		"elapsed":     strconv.FormatFloat(snap.Elapsed, 'g', -1, 64),
		"next_id":     strconv.FormatUint(uint64(snap.NextID), 10),
		"stats":       stats,
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Info("campaign saved",
		"campaign", snap.CampaignID,
		"tick", snap.Tick,
		"units", len(snap.Units),
		"sites", len(snap.Sites),
		"events", len(snap.Events),
	)
	return nil
}

func saveUnits(tx *sqlx.Tx, us []units.Unit) error {
	stmt, err := tx.Preparex(`INSERT INTO units
		(id, name, kind, team, role, level, gear_tier, alive, home_site_id, data_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range us {
		u := &us[i]
		data, err := toJSON(u)
		if err != nil {
			return fmt.Errorf("encode unit %d: %w", u.ID, err)
		}
		alive := 0
		if u.Alive {
			alive = 1
		}
		if _, err := stmt.Exec(u.ID, u.Name, u.Kind, u.Team, u.Role, u.Level, u.GearTier, alive, u.HomeSiteID, data); err != nil {
			return fmt.Errorf("insert unit %d: %w", u.ID, err)
		}
	}
	return nil
}

func saveSites(tx *sqlx.Tx, sites []world.Site) error {
	for i := range sites {
		s := &sites[i]
		data, err := toJSON(s)
		if err != nil {
			return fmt.Errorf("encode site %d: %w", s.ID, err)
		}
		if _, err := tx.Exec("INSERT INTO sites (id, name, owner, epoch, data_json) VALUES (?, ?, ?, ?, ?)",
			s.ID, s.Name, s.Owner, s.Epoch, data); err != nil {
			return fmt.Errorf("insert site %d: %w", s.ID, err)
		}
	}
	return nil
}

func saveFactions(tx *sqlx.Tx, factions []world.Faction) error {
	for i := range factions {
		f := &factions[i]
		data, err := toJSON(f)
		if err != nil {
			return fmt.Errorf("encode faction %d: %w", f.ID, err)
		}
		if _, err := tx.Exec("INSERT INTO factions (id, name, gold, tier, points, data_json) VALUES (?, ?, ?, ?, ?, ?)",
			f.ID, f.Name, f.Gold, f.Tier, f.Points, data); err != nil {
			return fmt.Errorf("insert faction %d: %w", f.ID, err)
		}
	}
	return nil
}

func saveEvents(tx *sqlx.Tx, events []engine.Event) error {
	for _, e := range events {
		meta, err := toJSON(e.Meta)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO events (id, tick, elapsed, description, category, meta_json) VALUES (?, ?, ?, ?, ?, ?)",
			e.ID, e.Tick, e.Elapsed, e.Description, e.Category, meta,
		); err != nil {
			return err
		}
	}
	return nil
}

// SaveMeta stores a key-value pair in campaign metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a campaign has been saved.
func (db *DB) HasState() (bool, error) {
	_, err := db.GetMeta("campaign_id")
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Load reads the stored snapshot. It returns ErrNoState on an empty database.
func (db *DB) Load() (*engine.Snapshot, error) {
	meta := make(map[string]string)
	rows, err := db.conn.Queryx("SELECT key, value FROM world_meta")
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	rows.Close()
	if meta["campaign_id"] == "" {
		return nil, ErrNoState
	}

	snap := &engine.Snapshot{CampaignID: meta["campaign_id"]}
	if snap.Version, err = strconv.Atoi(meta["version"]); err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	if snap.Tick, err = strconv.ParseUint(meta["tick"], 10, 64); err != nil {
		return nil, fmt.Errorf("parse tick: %w", err)
	}
	if snap.Elapsed, err = strconv.ParseFloat(meta["elapsed"], 64); err != nil {
		return nil, fmt.Errorf("parse elapsed: %w", err)
	}
	if err := json.Unmarshal([]byte(meta["stats"]), &snap.Stats); err != nil {
		return nil, fmt.Errorf("parse stats: %w", err)
	}
	// Saves written before the counter was stored recompute it on restore.
	if v, ok := meta["next_id"]; ok {
		next, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse next_id: %w", err)
		}
		snap.NextID = units.ID(next)
	}

	if snap.Units, err = loadAll[units.Unit](db, "SELECT data_json FROM units ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}
	if snap.Sites, err = loadAll[world.Site](db, "SELECT data_json FROM sites ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	if snap.Factions, err = loadAll[world.Faction](db, "SELECT data_json FROM factions ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load factions: %w", err)
	}
	groups, err := loadAll[formation.Group](db, "SELECT data_json FROM player_group")
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if len(groups) > 0 {
		snap.Group = &groups[0]
	}
	if snap.Events, err = db.events("SELECT id, tick, elapsed, description, category, meta_json FROM events ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	slog.Info("campaign loaded", "campaign", snap.CampaignID, "tick", snap.Tick, "units", len(snap.Units))
	return snap, nil
}

func loadAll[T any](db *DB, query string) ([]T, error) {
	var rows []dataRow
	if err := db.conn.Select(&rows, query); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := json.Unmarshal([]byte(r.Data), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (db *DB) events(query string, args ...any) ([]engine.Event, error) {
	var rows []eventRow
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.event()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// RecentEvents returns the most recent N stored events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	return db.events(
		"SELECT id, tick, elapsed, description, category, meta_json FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
}
