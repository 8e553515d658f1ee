// Package carddb reads card data out of one or more .cdb files merged into
// a single in-memory sqlite database. Later files override earlier ones.
package carddb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

const schema = `
CREATE TABLE datas (
	id        INTEGER PRIMARY KEY,
	ot        INTEGER,
	alias     INTEGER,
	setcode   INTEGER,
	type      INTEGER,
	atk       INTEGER,
	def       INTEGER,
	level     INTEGER,
	race      INTEGER,
	attribute INTEGER,
	category  INTEGER
);
CREATE TABLE texts (
	id    INTEGER PRIMARY KEY,
	name  TEXT, desc  TEXT,
	str1  TEXT, str2  TEXT, str3  TEXT, str4  TEXT,
	str5  TEXT, str6  TEXT, str7  TEXT, str8  TEXT,
	str9  TEXT, str10 TEXT, str11 TEXT, str12 TEXT,
	str13 TEXT, str14 TEXT, str15 TEXT, str16 TEXT
);`

const search = `SELECT id, ot, alias, setcode, type, atk, def, level, race, attribute, category
FROM datas WHERE id = ?`

type card struct {
	data  ygopro.CardData
	extra ygopro.CardExtra
}

// DB is safe for concurrent use.
type DB struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[uint32]card
}

var _ ygopro.CardSource = (*DB)(nil)

func Open(paths ...string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open card database: %w", err)
	}
	// Every pooled connection would be its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("card database schema: %w", err)
	}
	d := &DB{db: sqlDB, cache: make(map[uint32]card)}
	for _, p := range paths {
		if err := d.Merge(p); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return d, nil
}

// Merge copies every row of the .cdb at path over the current contents.
func (d *DB) Merge(path string) error {
	ctx := context.Background()
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS toMerge`, path); err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	defer conn.ExecContext(ctx, `DETACH DATABASE toMerge`)
	for _, stmt := range []string{
		`INSERT OR REPLACE INTO datas SELECT * FROM toMerge.datas`,
		`INSERT OR REPLACE INTO texts SELECT * FROM toMerge.texts`,
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("merge %s: %w", path, err)
		}
	}
	d.mu.Lock()
	clear(d.cache)
	d.mu.Unlock()
	return nil
}

func (d *DB) lookup(code uint32) (card, bool) {
	d.mu.RLock()
	c, ok := d.cache[code]
	d.mu.RUnlock()
	if ok {
		return c, true
	}

	var (
		id, ot, alias, typ, level, race, attr, category int64
		setcode                                         int64
		atk, def                                        int32
	)
	err := d.db.QueryRow(search, code).Scan(&id, &ot, &alias, &setcode, &typ, &atk, &def, &level, &race, &attr, &category)
	if err != nil {
		return card{}, false
	}
	c = card{
		data:  decode(uint32(id), uint32(alias), setcode, uint32(typ), atk, def, level, uint64(race), uint32(attr)),
		extra: ygopro.CardExtra{Scope: uint32(ot), Category: uint32(category)},
	}
	d.mu.Lock()
	d.cache[code] = c
	d.mu.Unlock()
	return c, true
}

// decode unpacks packed columns. setcode is four 16 bit set codes; level
// carries the pendulum scales in its high bytes. Link monsters keep their
// markers in def.
func decode(code, alias uint32, setcode int64, typ uint32, atk, def int32, level int64, race uint64, attr uint32) ygopro.CardData {
	c := ygopro.CardData{
		Code:      code,
		Alias:     alias,
		Type:      typ,
		Attack:    atk,
		Defense:   def,
		Level:     uint32(level) & 0x800000FF,
		LScale:    uint32(level>>24) & 0xFF,
		RScale:    uint32(level>>16) & 0xFF,
		Race:      race,
		Attribute: attr,
	}
	for i := range 4 {
		if s := uint16(setcode >> (i * 16)); s != 0 {
			c.Setcodes = append(c.Setcodes, s)
		}
	}
	if typ&ygopro.TypeLink != 0 {
		c.LinkMarker = uint32(def)
		c.Defense = 0
	}
	return c
}

func (d *DB) DataFromCode(code uint32) (ygopro.CardData, bool) {
	c, ok := d.lookup(code)
	return c.data, ok
}

func (d *DB) ExtraFromCode(code uint32) (ygopro.CardExtra, bool) {
	c, ok := d.lookup(code)
	return c.extra, ok
}

func (d *DB) Close() error { return d.db.Close() }
